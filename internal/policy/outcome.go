package policy

// Verdict tags which variant an Outcome holds.
type Verdict string

const (
	VerdictAllow  Verdict = "allow"
	VerdictBlock  Verdict = "block"
	VerdictWarn   Verdict = "warn"
	VerdictInject Verdict = "inject"
)

// Outcome is a handler's verdict for one envelope. The zero value is Allow.
type Outcome struct {
	verdict Verdict
	text    string // block reason, warning message or injected text
	context string // optional block context
}

func Allow() Outcome {
	return Outcome{}
}

// Block stops the action. context, when non-empty, is handed to the agent alongside reason.
func Block(reason, context string) Outcome {
	return Outcome{verdict: VerdictBlock, text: reason, context: context}
}

func Warn(message string) Outcome {
	return Outcome{verdict: VerdictWarn, text: message}
}

func InjectContext(text string) Outcome {
	return Outcome{verdict: VerdictInject, text: text}
}

func (o Outcome) Verdict() Verdict {
	if o.verdict == "" {
		return VerdictAllow
	}
	return o.verdict
}

func (o Outcome) IsBlock() bool { return o.verdict == VerdictBlock }

// Reason is the block reason; empty for other variants.
func (o Outcome) Reason() string {
	if o.verdict != VerdictBlock {
		return ""
	}
	return o.text
}

// BlockContext is the optional context attached to a block.
func (o Outcome) BlockContext() string {
	if o.verdict != VerdictBlock {
		return ""
	}
	return o.context
}

func (o Outcome) Message() string {
	if o.verdict != VerdictWarn {
		return ""
	}
	return o.text
}

func (o Outcome) Injected() string {
	if o.verdict != VerdictInject {
		return ""
	}
	return o.text
}

// Decision is the merged result of every handler that ran for one envelope.
type Decision struct {
	Proceed         bool
	Reason          string
	BlockContext    string
	BlockedBy       string
	Warnings        []string
	InjectedContext string
	// Evaluated names the handlers invoked, in order.
	Evaluated []string
}

// AllowDecision is the no-opinion decision.
func AllowDecision() Decision {
	return Decision{Proceed: true}
}

// Verdict summarizes the decision for auditing.
func (d Decision) Verdict() Verdict {
	switch {
	case !d.Proceed:
		return VerdictBlock
	case len(d.Warnings) > 0:
		return VerdictWarn
	case d.InjectedContext != "":
		return VerdictInject
	default:
		return VerdictAllow
	}
}
