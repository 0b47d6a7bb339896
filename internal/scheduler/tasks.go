package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskEngageLead = "leads.engage"

type EngageLeadPayload struct {
	LeadID     string  `json:"leadId"`
	Kind       string  `json:"kind"`
	Forced     bool    `json:"forced,omitempty"`
	ScheduleID *string `json:"scheduleId,omitempty"`
	SlotIndex  int     `json:"slotIndex,omitempty"`
}

func NewEngageLeadTask(payload EngageLeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEngageLead, data), nil
}

func ParseEngageLeadPayload(task *asynq.Task) (EngageLeadPayload, error) {
	var payload EngageLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EngageLeadPayload{}, err
	}
	return payload, nil
}
