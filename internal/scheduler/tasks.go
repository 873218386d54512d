package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskOutreachCycle = "outreach.cycle"

const TaskConnectionPoll = "outreach.poll_connections"

const TaskSendApproved = "outreach.send_approved"

// OutreachCyclePayload identifies who triggered the cycle, for tracing
// manual runs against periodic ones.
type OutreachCyclePayload struct {
	TriggeredBy string `json:"triggeredBy"`
}

func NewOutreachCycleTask(payload OutreachCyclePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutreachCycle, data), nil
}

func ParseOutreachCyclePayload(task *asynq.Task) (OutreachCyclePayload, error) {
	var payload OutreachCyclePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutreachCyclePayload{}, err
	}
	return payload, nil
}

func NewConnectionPollTask() *asynq.Task {
	return asynq.NewTask(TaskConnectionPoll, nil)
}

func NewSendApprovedTask() *asynq.Task {
	return asynq.NewTask(TaskSendApproved, nil)
}
