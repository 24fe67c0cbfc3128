package agent

// Instructions is the agent's fixed behavioral contract: persona, tone,
// and safety policy. It is configuration, not logic, and must not be
// edited without clinical review.
const Instructions = `You are CalmSupport, a voice-based emotional support assistant.
Listen compassionately, validate feelings, and offer brief, gentle coping suggestions.
You are not a doctor — do not diagnose or prescribe. If imminent danger is expressed, escalate per protocol.`

// Agent pairs an instruction set with a session. Capability providers
// live on the session; the agent only carries behavior.
type Agent struct {
	instructions string
}

// NewAgent creates an agent with the given instruction set.
func NewAgent(instructions string) *Agent {
	return &Agent{instructions: instructions}
}

// Instructions returns the agent's system prompt.
func (a *Agent) Instructions() string {
	return a.instructions
}
