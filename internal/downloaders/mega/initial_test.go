package megadl

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bpepple/clu-comics-sub001/internal/mega"
	"github.com/bpepple/clu-comics-sub001/internal/utils"
)

func TestValidateJobOffline(t *testing.T) {
	d := &MegaDownloader{}
	key := base64.RawURLEncoding.EncodeToString(make([]byte, 32))

	job := &utils.Job{URL: "https://mega.nz/file/AbCd1234#" + key}
	assert.NoError(t, d.ValidateJob(job))

	job = &utils.Job{URL: "https://mega.nz/#!AbCd1234!" + key}
	assert.NoError(t, d.ValidateJob(job))
}

func TestValidateJobRejectsBadLinks(t *testing.T) {
	d := &MegaDownloader{}

	err := d.ValidateJob(&utils.Job{URL: "https://example.com/file/x#y"})
	assert.ErrorIs(t, err, mega.ErrMalformedLink)

	err = d.ValidateJob(&utils.Job{URL: "https://mega.nz/file/AbCd1234"})
	assert.ErrorIs(t, err, mega.ErrMissingKey)

	short := base64.RawURLEncoding.EncodeToString(make([]byte, 10))
	err = d.ValidateJob(&utils.Job{URL: "https://mega.nz/file/AbCd1234#" + short})
	assert.ErrorIs(t, err, mega.ErrInvalidKeyLength)
}
