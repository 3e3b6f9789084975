package workflow

import "fmt"

// StateMachineBuilder builds a configured step state machine
type StateMachineBuilder interface {
	// Configure returns a configuration for the given step status
	Configure(status StepStatus) StateConfiguration

	// Build creates a new state machine instance with the given initial status
	Build(initial StepStatus) StateMachine
}

// StateConfiguration configures transitions for a specific step status
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target status. A trigger
	// has at most one target per status.
	Permit(trigger Trigger, to StepStatus) StateConfiguration
}

type stateConfig struct {
	from        StepStatus
	transitions map[Trigger]StepStatus
}

type stateMachineBuilder struct {
	configurations map[StepStatus]*stateConfig
}

type stateMachine struct {
	current        StepStatus
	configurations map[StepStatus]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[StepStatus]*stateConfig),
	}
}

// Configure returns a state configuration for the given status
func (b *stateMachineBuilder) Configure(status StepStatus) StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid step status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &stateConfig{
			from:        status,
			transitions: make(map[Trigger]StepStatus),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates a new state machine instance with the given initial status
func (b *stateMachineBuilder) Build(initial StepStatus) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial step status: %s", initial))
	}

	// Copy so later Configure calls don't leak into built machines
	configsCopy := make(map[StepStatus]*stateConfig, len(b.configurations))
	for status, config := range b.configurations {
		transitionsCopy := make(map[Trigger]StepStatus, len(config.transitions))
		for trigger, to := range config.transitions {
			transitionsCopy[trigger] = to
		}
		configsCopy[status] = &stateConfig{
			from:        status,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows a trigger to transition to the target status
func (c *stateConfig) Permit(trigger Trigger, to StepStatus) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target step status: %s", to))
	}
	if prev, exists := c.transitions[trigger]; exists && prev != to {
		panic(fmt.Sprintf("trigger %s from %s already targets %s", trigger, c.from, prev))
	}
	c.transitions[trigger] = to
	return c
}

// Status returns the current status
func (m *stateMachine) Status() StepStatus {
	return m.current
}

// Fire moves to the status the trigger targets, or fails with
// ErrInvalidTransition when the current status does not permit it
func (m *stateMachine) Fire(trigger Trigger) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from %s (no configuration)", ErrInvalidTransition, trigger, m.current)
	}

	to, permitted := config.transitions[trigger]
	if !permitted {
		return fmt.Errorf("%w: cannot fire trigger %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	m.current = to
	return nil
}
