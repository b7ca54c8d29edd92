package ui

import (
	"fmt"
	"strings"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
)

// setupValues backs the setup form. It outlives a single form so a rejected
// request can be retried with the previous answers.
type setupValues struct {
	Topic  string
	Count  int
	Models [api.MaxAgents]string
}

func newSetupValues(models *api.ModelsResponse) *setupValues {
	v := &setupValues{Count: api.DefaultAgents}
	if models != nil {
		for i := range v.Models {
			v.Models[i] = models.DefaultModel
		}
	}
	return v
}

func validateTopic(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("a topic is required")
	}
	if len([]rune(s)) > api.MaxTopicLen {
		return errors.Errorf("topic is limited to %d characters", api.MaxTopicLen)
	}
	return nil
}

func countOptions() []huh.Option[int] {
	opts := make([]huh.Option[int], 0, api.MaxAgents-api.MinAgents+1)
	for n := api.MinAgents; n <= api.MaxAgents; n++ {
		label := fmt.Sprintf("%d agents", n)
		if n == 1 {
			label = "1 agent"
		}
		opts = append(opts, huh.NewOption(label, n))
	}
	return opts
}

// newSetupForm asks for the topic, the number of agents and, when the server
// lists models, a model per agent.
func newSetupForm(v *setupValues, models *api.ModelsResponse) *huh.Form {
	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().
				Title("Topic").
				Description("What should the agents brainstorm about?").
				CharLimit(api.MaxTopicLen).
				Validate(validateTopic).
				Value(&v.Topic),
			huh.NewSelect[int]().
				Title("Agents").
				Options(countOptions()...).
				Value(&v.Count),
		),
	}
	if models != nil && len(models.Models) > 0 {
		for i := 0; i < api.MaxAgents; i++ {
			idx := i
			groups = append(groups, huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Model for agent %d", idx+1)).
					Options(huh.NewOptions(models.Models...)...).
					Value(&v.Models[idx]),
			).WithHideFunc(func() bool { return idx >= v.Count }))
		}
	}
	return huh.NewForm(groups...).WithTheme(huh.ThemeCharm()).WithShowHelp(true)
}

// agentConfigs always returns one entry per agent so the count survives even
// without model overrides.
func (v *setupValues) agentConfigs() []api.AgentConfig {
	n := v.Count
	if n < api.MinAgents {
		n = api.DefaultAgents
	}
	if n > api.MaxAgents {
		n = api.MaxAgents
	}
	out := make([]api.AgentConfig, n)
	for i := range out {
		out[i].ModelName = strings.TrimSpace(v.Models[i])
	}
	return out
}
