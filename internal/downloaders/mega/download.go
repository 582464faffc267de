package megadl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/bpepple/clu-comics-sub001/internal/mega"
	"github.com/bpepple/clu-comics-sub001/internal/utils"
)

// Download streams the node into a temp file and renames it into place
// once the MAC verifies. Unverified bytes never land at the final path;
// on integrity failure the partial file is removed outright.
func (d *MegaDownloader) Download(job *utils.Job) error {
	tempDir := filepath.Join(filepath.Dir(job.OutputPath), utils.TempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return fmt.Errorf("error creating temp directory: %v", err)
	}
	tempOutputPath := fmt.Sprintf("%s.part", filepath.Join(tempDir, filepath.Base(job.OutputPath)))

	outFile, err := os.OpenFile(tempOutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating output file: %v", err)
	}

	dl := mega.NewDownloader(job.HTTPClientConfig)
	dl.OnProgress = job.ProgressFunc

	result, err := dl.Download(context.Background(), job.URL, outFile)
	closeErr := outFile.Close()
	if err != nil {
		if removeErr := os.Remove(tempOutputPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Warn().Str("op", "mega/job").Msgf("Could not remove partial file %s", tempOutputPath)
		}
		if errors.Is(err, mega.ErrIntegrity) {
			log.Error().Str("op", "mega/job").Msgf("Integrity check failed for %s, discarded partial output", job.OutputPath)
		}
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("error finalizing output file: %v", closeErr)
	}

	if err := os.Rename(tempOutputPath, job.OutputPath); err != nil {
		return fmt.Errorf("error renaming (finalizing) output file: %v", err)
	}
	log.Info().Str("op", "mega/job").Msgf("Downloaded %s (%d bytes, verified)", job.OutputPath, result.BytesWritten)
	return nil
}
