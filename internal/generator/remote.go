package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/cofounder/internal/a2a"
)

// SkillGenerate is the skill a Remote request asks for: one generation with
// the given role and temperature.
const SkillGenerate = "generate"

// GeneratedArtifact names the artifact that carries the generated text.
const GeneratedArtifact = "generated_text"

// Remote delegates generation to an A2A agent. The instruction is sent as a
// text message; the skill, role and temperature travel in the message
// metadata.
type Remote struct {
	client   a2a.Client
	endpoint string
}

// NewRemote creates a generator backed by the agent at endpoint.
func NewRemote(client a2a.Client, endpoint string) *Remote {
	return &Remote{client: client, endpoint: endpoint}
}

type remoteMetadata struct {
	Skill       string  `json:"skill"`
	Role        string  `json:"role"`
	Temperature float64 `json:"temperature"`
}

// NewRequestMessage encodes req as an A2A message for the generate skill.
func NewRequestMessage(req Request) (a2a.Message, error) {
	meta, err := json.Marshal(remoteMetadata{Skill: SkillGenerate, Role: req.Role, Temperature: req.Temperature})
	if err != nil {
		return a2a.Message{}, err
	}
	msg := a2a.NewTextMessage(a2a.RoleUser, req.Instruction)
	msg.Metadata = meta
	return msg, nil
}

// RequestFromMessage decodes a message built by NewRequestMessage. ok is
// false for any other message.
func RequestFromMessage(msg a2a.Message) (req Request, ok bool) {
	var meta remoteMetadata
	if len(msg.Metadata) == 0 || json.Unmarshal(msg.Metadata, &meta) != nil || meta.Skill != SkillGenerate {
		return Request{}, false
	}
	return Request{Role: meta.Role, Instruction: msg.Text(), Temperature: meta.Temperature}, true
}

// Generate sends one message/send request and returns the generated_text
// artifact, or the text of all artifacts for agents that name theirs
// differently. A task that did not complete is a failure.
func (r *Remote) Generate(ctx context.Context, req Request) (string, error) {
	msg, err := NewRequestMessage(req)
	if err != nil {
		return "", r.fail(err)
	}

	task, err := r.client.SendMessage(ctx, r.endpoint, a2a.SendMessageRequest{Message: msg})
	if err != nil {
		return "", r.fail(err)
	}
	if task.Status.State != a2a.TaskStateCompleted {
		reason := ""
		if task.Status.Message != nil {
			reason = ": " + task.Status.Message.Text()
		}
		return "", r.fail(fmt.Errorf("task %s ended in state %q%s", task.ID, task.Status.State, reason))
	}
	if art, ok := task.Artifact(GeneratedArtifact); ok {
		return art.Text(), nil
	}
	if len(task.Artifacts) == 0 {
		return "", r.fail(fmt.Errorf("task %s returned no artifacts", task.ID))
	}
	return task.Text(), nil
}

func (r *Remote) fail(err error) error {
	return &Error{Provider: "a2a", Model: r.endpoint, Err: err}
}
