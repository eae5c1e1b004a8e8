package services

import (
	"bytes"
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bough38-web/inspection-app/internal/models"
)

const (
	maxExportJobs = 64
	exportJobTTL  = 30 * time.Minute
)

// JobStatus - состояние фоновой выгрузки.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// JobSnapshot - состояние задачи на момент запроса.
type JobSnapshot struct {
	ID      string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Done    int       `json:"done"`
	Total   int       `json:"total"`
	Percent int       `json:"percent"`
	Error   string    `json:"error,omitempty"`
}

type exportJob struct {
	mu     sync.Mutex
	id     string
	status JobStatus
	done   int
	total  int
	err    string
	data   []byte
}

func (j *exportJob) snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	percent := 0
	switch {
	case j.status == JobDone:
		percent = 100
	case j.total > 0:
		percent = j.done * 100 / j.total
	}
	return JobSnapshot{
		ID:      j.id,
		Status:  j.status,
		Done:    j.done,
		Total:   j.total,
		Percent: percent,
		Error:   j.err,
	}
}

// ExportJobs запускает выгрузку XLSX в фоне и хранит результаты ограниченное время.
type ExportJobs struct {
	export  ExportService
	timeout time.Duration
	jobs    *expirable.LRU[string, *exportJob]
	wg      sync.WaitGroup
}

// NewExportJobs создает реестр фоновых выгрузок.
func NewExportJobs(export ExportService, timeout time.Duration) *ExportJobs {
	return &ExportJobs{
		export:  export,
		timeout: timeout,
		jobs:    expirable.NewLRU[string, *exportJob](maxExportJobs, nil, exportJobTTL),
	}
}

// Start запускает выгрузку и сразу возвращает идентификатор задачи.
func (e *ExportJobs) Start(filter models.InspectionFilter) string {
	job := &exportJob{id: uuid.NewString(), status: JobRunning}
	e.jobs.Add(job.id, job)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(job, filter)
	}()

	log.Printf("[ExportJobs] Запущена выгрузка %s", job.id)
	return job.id
}

func (e *ExportJobs) run(job *exportJob, filter models.InspectionFilter) {
	ctx := context.Background()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	err := e.export.WriteSpreadsheet(ctx, filter, &buf, func(done, total int) {
		job.mu.Lock()
		job.done, job.total = done, total
		job.mu.Unlock()
	})

	job.mu.Lock()
	defer job.mu.Unlock()
	if err != nil {
		job.status = JobFailed
		job.err = "엑셀 생성에 실패했습니다."
		log.Printf("[ExportJobs] Выгрузка %s завершилась ошибкой: %v", job.id, err)
		return
	}
	job.status = JobDone
	job.data = buf.Bytes()
	log.Printf("[ExportJobs] Выгрузка %s готова: %d байт", job.id, len(job.data))
}

// Get возвращает состояние задачи.
func (e *ExportJobs) Get(id string) (JobSnapshot, error) {
	job, ok := e.jobs.Get(id)
	if !ok {
		return JobSnapshot{}, ErrJobNotFound
	}
	return job.snapshot(), nil
}

// File возвращает готовый файл задачи.
func (e *ExportJobs) File(id string) ([]byte, error) {
	job, ok := e.jobs.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	switch job.status {
	case JobDone:
		return job.data, nil
	case JobFailed:
		return nil, ErrJobFailed
	default:
		return nil, ErrJobNotReady
	}
}

// Wait ожидает завершения всех запущенных выгрузок.
func (e *ExportJobs) Wait() {
	e.wg.Wait()
}
