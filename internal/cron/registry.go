package cron

import (
	"context"
	"fmt"
	"slices"
)

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a cycle runs, in registration order. Names are unique.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		_ = r.Register(job)
	}
	return r
}

// Register appends job. A nil job is a no-op.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if slices.ContainsFunc(r.jobs, func(j Job) bool { return j.Name() == name }) {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// RegisterIf is Register behind a feature toggle.
func (r *Registry) RegisterIf(enabled bool, job Job) error {
	if enabled {
		return r.Register(job)
	}
	return nil
}

func (r *Registry) Jobs() []Job { return slices.Clone(r.jobs) }

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}
