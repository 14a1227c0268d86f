package controllers

import "github.com/shyifrah/kas/internal/queue"

// queueInfo is the JSON view of one queue.
type queueInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Threshold   int    `json:"threshold"`
	Disposition string `json:"disposition"`
	Size        int    `json:"size"`
	State       string `json:"state"`
}

func toQueueInfo(in queue.Info) queueInfo {
	return queueInfo{
		Name:        in.Name,
		Description: in.Description,
		Threshold:   in.Threshold,
		Disposition: in.Disposition.String(),
		Size:        in.Size,
		State:       in.State.String(),
	}
}
