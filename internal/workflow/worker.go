package workflow

import (
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/roadsafe/crash-cli/internal/config"
)

// Dial connects to the Temporal server from config.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// RunWorker registers the retrain workflow and its activities on the task
// queue and blocks until interrupted.
func RunWorker(c client.Client, taskQueue string, a *Activities) error {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(RetrainWorkflow)
	w.RegisterActivity(a)

	if err := w.Run(worker.InterruptCh()); err != nil {
		return eris.Wrap(err, "workflow: run worker")
	}
	return nil
}
