package utils

import "errors"

// Downloader is implemented once per supported link type. The
// scheduler drives jobs through validate, build and download in that
// order.
type Downloader interface {
	ValidateJob(job *Job) error
	BuildJob(job *Job) error
	Download(job *Job) error
}

// Job carries one download through the pipeline. ProgressFunc, when
// set, receives cumulative downloaded bytes against the total.
type Job struct {
	ID               string
	JobType          string
	URL              string
	OutputPath       string
	ProgressFunc     func(downloaded, total int64)
	Metadata         map[string]any
	HTTPClientConfig HTTPClientConfig
}

// DownloadEntry is one row of a YAML batch list.
type DownloadEntry struct {
	OutputPath string `yaml:"op"`
	URL        string `yaml:"link"`
}

const TempDirName = ".clu-temp"

var ErrOutputExists = errors.New("file already exists with same size")
