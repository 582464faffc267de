package megadl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bpepple/clu-comics-sub001/internal/mega"
	"github.com/bpepple/clu-comics-sub001/internal/utils"
)

type MegaDownloader struct{}

// ValidateJob checks the link offline: parse and key derivation only.
// A link that cannot yield a usable key must fail here, before any
// network call.
func (d *MegaDownloader) ValidateJob(job *utils.Job) error {
	sl, err := mega.ParseLink(job.URL)
	if err != nil {
		return err
	}
	if _, err := mega.DeriveKeys(sl.RawKey); err != nil {
		return err
	}
	return nil
}

// BuildJob resolves the node and fills in size and output path. The
// display name comes out of the decrypted attribute blob; the provider
// never sees it in plaintext.
func (d *MegaDownloader) BuildJob(job *utils.Job) error {
	dl := mega.NewDownloader(job.HTTPClientConfig)
	info, err := dl.Stat(context.Background(), job.URL)
	if err != nil {
		return fmt.Errorf("error resolving node: %w", err)
	}

	if job.OutputPath == "" {
		name := utils.SanitizeFilename(info.Name)
		job.OutputPath = name
	}
	if existingFile, err := os.Stat(job.OutputPath); err == nil {
		if info.Size > 0 && existingFile.Size() == info.Size {
			return utils.ErrOutputExists
		}
		job.OutputPath = utils.RenewOutputPath(job.OutputPath)
	}
	if dir := filepath.Dir(job.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %v", err)
		}
	}

	job.Metadata["fileSize"] = info.Size
	job.Metadata["fileName"] = info.Name
	job.Metadata["handle"] = info.Handle
	return nil
}
