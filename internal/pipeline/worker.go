package pipeline

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/antigravity-dev/noetic/internal/investigation"
)

// TaskQueue is the Temporal task queue the pipeline worker polls and the
// queue every ExecuteWorkflow call from the control surface targets.
const TaskQueue = "noetic-pipeline"

// StartWorker connects to Temporal and runs the pipeline worker until
// interrupted. acts holds every dependency the phase activities need;
// the caller constructs it once at the composition root.
func StartWorker(hostPort string, acts *Activities) error {
	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		return err
	}
	defer c.Close()

	w := worker.New(c, TaskQueue, worker.Options{})

	w.RegisterWorkflow(ResearchPipelineWorkflow)
	w.RegisterWorkflow(investigation.InvestigationTreeWorkflow)

	w.RegisterActivity(acts.PlanActivity)
	w.RegisterActivity(acts.ClassifyActivity)
	w.RegisterActivity(acts.PublishPhaseEventActivity)
	w.RegisterActivity(acts.AdjudicateActivity)
	w.RegisterActivity(acts.SynthesizeActivity)
	w.RegisterActivity(acts.MarkPausedActivity)
	w.RegisterActivity(acts.MarkErrorActivity)
	w.RegisterActivity(acts.CompleteActivity)

	ia := acts.investigationActivities()
	w.RegisterActivity(ia.GetPathwayActivity)
	w.RegisterActivity(ia.ResolveTriggerActivity)
	w.RegisterActivity(ia.InvestigateLevelActivity)

	return w.Run(worker.InterruptCh())
}
