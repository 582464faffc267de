package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	megadl "github.com/bpepple/clu-comics-sub001/internal/downloaders/mega"
	"github.com/bpepple/clu-comics-sub001/internal/output"
	"github.com/bpepple/clu-comics-sub001/internal/utils"
)

// downloaderRegistry maps job types to their downloader
// implementations.
var downloaderRegistry = map[string]utils.Downloader{
	"mega": &megadl.MegaDownloader{},
}

// Run drives the given jobs through validate → build → download with
// numWorkers parallel workers. Sessions are fully independent; they
// share nothing but the progress renderer. Returns an error if any job
// failed.
func Run(jobs []utils.Job, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	outputMgr := output.NewManager()

	jobCh := make(chan utils.Job, len(jobs))
	for _, job := range jobs {
		if job.ID == "" {
			job.ID = uuid.New().String()
		}
		if job.Metadata == nil {
			job.Metadata = make(map[string]any)
		}
		jobCh <- job
	}
	close(jobCh)

	var failures atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if err := processJob(&job, outputMgr); err != nil {
					failures.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	outputMgr.Wait()

	if n := failures.Load(); n > 0 {
		return fmt.Errorf("%d of %d downloads failed", n, len(jobs))
	}
	return nil
}

func processJob(job *utils.Job, outputMgr *output.Manager) error {
	log := utils.GetLogger("scheduler")

	downloader, exists := downloaderRegistry[job.JobType]
	if !exists {
		utils.PrintError(fmt.Sprintf("Unknown job type %q for %s", job.JobType, job.URL))
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}

	if err := downloader.ValidateJob(job); err != nil {
		log.Error().Str("job", job.ID).Err(err).Msg("Validation failed")
		utils.PrintError(fmt.Sprintf("Invalid link: %v", err))
		return err
	}
	if err := downloader.BuildJob(job); err != nil {
		if errors.Is(err, utils.ErrOutputExists) {
			log.Info().Str("job", job.ID).Msgf("Skipping %s, already downloaded", job.OutputPath)
			utils.PrintWarning(fmt.Sprintf("Skipped (exists): %s", job.OutputPath))
			return nil
		}
		log.Error().Str("job", job.ID).Err(err).Msg("Build failed")
		utils.PrintError(fmt.Sprintf("Could not prepare %s: %v", job.URL, err))
		return err
	}

	total, _ := job.Metadata["fileSize"].(int64)
	bar := outputMgr.AddJob(job.OutputPath, total)
	job.ProgressFunc = bar.Update

	if err := downloader.Download(job); err != nil {
		bar.Abort()
		log.Error().Str("job", job.ID).Err(err).Msg("Download failed")
		utils.PrintError(fmt.Sprintf("Failed: %s (%v)", job.OutputPath, err))
		return err
	}
	bar.Done()
	utils.PrintSuccess(fmt.Sprintf("Saved: %s", job.OutputPath))
	return nil
}
