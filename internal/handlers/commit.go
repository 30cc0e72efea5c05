package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/pathutil"
	"github.com/harunnryd/tollgate/internal/policy"

	"github.com/google/shlex"
	"github.com/sahilm/fuzzy"
)

const CommitMessageName = "commit-message"

var (
	looksLikeCommit = regexp.MustCompile(`\bgit\b[\s\S]*\bcommit\b`)
	heredocStart    = regexp.MustCompile(`("?\$\(\s*cat\s+)?<<-?\s*['"]?([A-Za-z_][A-Za-z0-9_]*)['"]?`)
	commitType      = regexp.MustCompile(`^([A-Za-z]+)(\([^)]*\))?!?:\s`)
)

// heredocToken stands in for a $(cat <<EOF ... EOF) substitution once the body is cut out.
const heredocToken = "TOLLGATE_HEREDOC_BODY"

var shellSeparators = []string{"&&", "||", ";", "|", "&"}

// git options that take a separate value before the subcommand.
var gitValueOptions = []string{"-C", "-c", "--git-dir", "--work-tree", "--namespace", "--exec-path"}

// shells whose -c script is parsed as a nested command.
var shellWrappers = []string{"sh", "bash", "zsh", "dash", "ksh"}

const maxScriptDepth = 3

// commitMessage is what a git commit invocation says about its message.
type commitMessage struct {
	text string
	// reuse is set when git takes the message from elsewhere (-C, --no-edit, --fixup).
	reuse bool
}

// CommitMessage checks the type prefix of commit messages passed on the command line.
type CommitMessage struct {
	actions []string
	allowed []string
}

func NewCommitMessage(actions, allowed []string) *CommitMessage {
	return &CommitMessage{actions: actions, allowed: allowed}
}

func (h *CommitMessage) Name() string { return CommitMessageName }

func (h *CommitMessage) Description() string {
	return "Requires an allowed type prefix on commit messages"
}

func (h *CommitMessage) AppliesTo() policy.Selector {
	return policy.Selector{Kinds: []hook.Kind{hook.PreAction}, Actions: h.actions}
}

func (h *CommitMessage) Check(ctx context.Context, env *hook.Envelope) (policy.Outcome, error) {
	command := env.InputString("command", "cmd")
	if !looksLikeCommit.MatchString(command) {
		return policy.Allow(), nil
	}

	msgs, err := parseCommitCommand(command, env.WorkingDirectory())
	if err != nil {
		return policy.Block(
			fmt.Sprintf("Could not read the commit message from this command (%v). Pass it with -m \"<type>: <summary>\" or a heredoc so it can be checked.", err),
			"",
		), nil
	}

	for _, msg := range msgs {
		if msg.reuse || strings.TrimSpace(msg.text) == "" {
			// an amend keeping its message, or an editor session
			continue
		}
		if outcome := h.validate(msg.text); outcome.IsBlock() {
			return outcome, nil
		}
	}
	return policy.Allow(), nil
}

func (h *CommitMessage) validate(message string) policy.Outcome {
	subject := firstLine(message)
	m := commitType.FindStringSubmatch(subject)
	if m == nil {
		return policy.Block(
			fmt.Sprintf("Commit message %q has no type prefix. Use \"<type>: <summary>\" or \"<type>(scope): <summary>\" with one of: %s.",
				subject, strings.Join(h.allowed, ", ")),
			"",
		)
	}

	typ := m[1]
	if slices.Contains(h.allowed, typ) {
		return policy.Allow()
	}

	reason := fmt.Sprintf("Commit type %q is not allowed. Allowed types: %s.", typ, strings.Join(h.allowed, ", "))
	if suggestion := h.suggest(typ); suggestion != "" {
		reason += fmt.Sprintf(" Did you mean %q?", suggestion)
	}
	return policy.Block(reason, "")
}

func (h *CommitMessage) suggest(typ string) string {
	matches := fuzzy.Find(strings.ToLower(typ), h.allowed)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

func firstLine(message string) string {
	for _, line := range strings.Split(message, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// parseCommitCommand finds every git commit invocation in a shell command and extracts
// its message from -m/--message, -F <file>, or a heredoc fed through $(cat <<EOF) or -F -.
// Commands are split at unquoted newlines and shell operators; sh -c and eval scripts are
// parsed as nested commands.
func parseCommitCommand(command, workDir string) ([]commitMessage, error) {
	p := &commitParser{}
	if err := p.parse(command, messageSource{workDir: workDir}, 0); err != nil {
		return nil, err
	}
	if p.unrecognized {
		return nil, fmt.Errorf("git commit invocation not recognized")
	}
	return p.msgs, nil
}

type commitParser struct {
	msgs []commitMessage
	// unrecognized is set when a segment names git followed by commit but no
	// invocation could be read from it; the whole command is then refused.
	unrecognized bool
}

func (p *commitParser) parse(script string, src messageSource, depth int) error {
	if depth > maxScriptDepth {
		return fmt.Errorf("shell scripts nested too deeply")
	}

	stripped, body, hasBody := cutHeredoc(script)
	if hasBody {
		src.heredoc, src.hasHeredoc = body, true
	}

	for _, line := range splitLines(stripped) {
		tokens, err := shlex.Split(line)
		if err != nil {
			return err
		}
		for _, segment := range splitSegments(tokens) {
			if nested, ok := wrappedScript(segment); ok {
				if err := p.parse(nested, src, depth+1); err != nil {
					return err
				}
				continue
			}
			args, ok := commitArgs(segment)
			if !ok {
				if namesCommit(segment) {
					p.unrecognized = true
				}
				continue
			}
			msg, err := readMessage(args, src)
			if err != nil {
				return err
			}
			p.msgs = append(p.msgs, msg)
		}
	}
	return nil
}

// splitLines breaks a script at newlines outside quotes and comments. A backslash-newline
// joins two lines.
func splitLines(script string) []string {
	var lines []string
	var b strings.Builder
	var quote rune
	escaped, comment := false, false
	prev := ' '

	for _, r := range script {
		switch {
		case escaped:
			escaped = false
			if r == '\n' {
				prev = ' '
				continue
			}
			b.WriteRune('\\')
			b.WriteRune(r)
			prev = r
			continue
		case comment:
			if r == '\n' {
				comment = false
				lines = append(lines, b.String())
				b.Reset()
				prev = ' '
				continue
			}
		case r == '\\' && quote != '\'':
			escaped = true
			continue
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#' && strings.ContainsRune(" \t;&|(", prev):
			comment = true
		case r == '\n':
			lines = append(lines, b.String())
			b.Reset()
			prev = ' '
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	if escaped {
		b.WriteRune('\\')
	}
	return append(lines, b.String())
}

func splitSegments(tokens []string) [][]string {
	var segments [][]string
	var current []string
	for _, tok := range tokens {
		if slices.Contains(shellSeparators, tok) {
			segments = append(segments, current)
			current = nil
			continue
		}
		if trimmed := strings.TrimRight(tok, ";"); trimmed != tok {
			if trimmed != "" {
				current = append(current, trimmed)
			}
			segments = append(segments, current)
			current = nil
			continue
		}
		current = append(current, tok)
	}
	return append(segments, current)
}

// commandName strips subshell and substitution openers and any directory from a token,
// so "(git", "$(git" and "/usr/bin/git" all name git.
func commandName(tok string) string {
	name := strings.TrimLeft(tok, "$({`")
	if name == "" {
		return ""
	}
	return filepath.Base(name)
}

// wrappedScript returns the script a segment hands to a nested shell: sh -c '<script>'
// (short flags may be bundled, as in bash -lc) or eval <words>.
func wrappedScript(segment []string) (string, bool) {
	for i, tok := range segment {
		name := commandName(tok)
		if name == "eval" && i+1 < len(segment) {
			return strings.Join(segment[i+1:], " "), true
		}
		if !slices.Contains(shellWrappers, name) {
			continue
		}
		for j := i + 1; j < len(segment); j++ {
			flag := segment[j]
			if strings.HasPrefix(flag, "--") {
				continue
			}
			if !strings.HasPrefix(flag, "-") {
				break
			}
			if strings.ContainsRune(flag[1:], 'c') && j+1 < len(segment) {
				return segment[j+1], true
			}
		}
	}
	return "", false
}

// commitArgs returns the arguments after "git [global options] commit". Every git token
// in the segment is tried, so prefixes such as sudo or env VAR=x do not hide it.
func commitArgs(segment []string) ([]string, bool) {
	for i, tok := range segment {
		if commandName(tok) != "git" {
			continue
		}
		args, ok := argsAfterCommit(segment[i+1:])
		if !ok {
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(tok, "$"), "(") && len(args) > 0 {
			// (git commit -m "x") leaves the closing paren on the last word
			args = slices.Clone(args)
			last := len(args) - 1
			args[last] = strings.TrimSuffix(args[last], ")")
		}
		return args, true
	}
	return nil, false
}

func argsAfterCommit(rest []string) ([]string, bool) {
	for i := 0; i < len(rest); i++ {
		tok := rest[i]
		if slices.Contains(gitValueOptions, tok) {
			i++
			continue
		}
		if strings.HasPrefix(tok, "-") {
			continue
		}
		if tok == "commit" {
			return rest[i+1:], true
		}
		return nil, false
	}
	return nil, false
}

// namesCommit reports a word ending in git directly followed by commit, for invocations
// the parser does not model such as "$(which git)" commit.
func namesCommit(segment []string) bool {
	for i := 0; i+1 < len(segment); i++ {
		if segment[i+1] == "commit" && strings.HasSuffix(strings.TrimRight(segment[i], ")\"'`"), "git") {
			return true
		}
	}
	return false
}

type messageSource struct {
	workDir    string
	heredoc    string
	hasHeredoc bool
}

func (src messageSource) value(v string) string {
	if v == heredocToken && src.hasHeredoc {
		return src.heredoc
	}
	return v
}

func (src messageSource) file(path string) (string, error) {
	if path == "-" {
		if src.hasHeredoc {
			return src.heredoc, nil
		}
		return "", fmt.Errorf("message read from stdin")
	}
	data, err := os.ReadFile(pathutil.Normalize(path, src.workDir))
	if err != nil {
		return "", fmt.Errorf("read message file: %w", err)
	}
	return string(data), nil
}

func readMessage(args []string, src messageSource) (commitMessage, error) {
	var msg commitMessage
	var paragraphs []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s needs a value", arg)
			}
			i++
			return args[i], nil
		}

		switch {
		case arg == "--":
			i = len(args)
		case arg == "-m" || arg == "--message":
			v, err := next()
			if err != nil {
				return msg, err
			}
			paragraphs = append(paragraphs, src.value(v))
		case strings.HasPrefix(arg, "--message="):
			paragraphs = append(paragraphs, src.value(strings.TrimPrefix(arg, "--message=")))
		case arg == "-F" || arg == "--file":
			v, err := next()
			if err != nil {
				return msg, err
			}
			text, err := src.file(v)
			if err != nil {
				return msg, err
			}
			paragraphs = append(paragraphs, text)
		case strings.HasPrefix(arg, "--file="):
			text, err := src.file(strings.TrimPrefix(arg, "--file="))
			if err != nil {
				return msg, err
			}
			paragraphs = append(paragraphs, text)
		case isReuseFlag(arg):
			msg.reuse = true
		case strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") && len(arg) > 1:
			// bundled short flags: -am "msg", -m"msg"
			flags := arg[1:]
			idx := strings.IndexByte(flags, 'm')
			if idx < 0 {
				continue
			}
			if rest := flags[idx+1:]; rest != "" {
				paragraphs = append(paragraphs, src.value(rest))
				continue
			}
			v, err := next()
			if err != nil {
				return msg, err
			}
			paragraphs = append(paragraphs, src.value(v))
		}
	}

	if len(paragraphs) > 0 {
		msg.reuse = false
		msg.text = strings.Join(paragraphs, "\n\n")
	}
	return msg, nil
}

func isReuseFlag(arg string) bool {
	switch arg {
	case "-C", "-c", "--reuse-message", "--reedit-message", "--fixup", "--squash", "--no-edit":
		return true
	}
	for _, prefix := range []string{"--reuse-message=", "--reedit-message=", "--fixup=", "--squash="} {
		if strings.HasPrefix(arg, prefix) {
			return true
		}
	}
	return false
}

// cutHeredoc removes the first heredoc from command and returns its body. A
// "$(cat <<EOF ... EOF)" substitution is replaced by heredocToken; a bare heredoc
// (git commit -F - <<EOF) is dropped.
func cutHeredoc(command string) (string, string, bool) {
	loc := heredocStart.FindStringSubmatchIndex(command)
	if loc == nil {
		return command, "", false
	}
	substitution := loc[2] >= 0
	delim := command[loc[4]:loc[5]]

	nl := strings.IndexByte(command[loc[1]:], '\n')
	if nl < 0 {
		return command, "", false
	}
	// rest of the line that opened the heredoc, e.g. "&& git push"
	tail := command[loc[1] : loc[1]+nl]

	var body []string
	pos := loc[1] + nl + 1
	for pos <= len(command) {
		lineEnd := strings.IndexByte(command[pos:], '\n')
		if lineEnd < 0 {
			lineEnd = len(command) - pos
		}
		line := command[pos : pos+lineEnd]
		if strings.TrimSpace(line) != delim {
			body = append(body, line)
			pos += lineEnd + 1
			continue
		}

		rest := command[pos+lineEnd:]
		replacement := ""
		if substitution {
			rest = strings.TrimLeft(rest, " \t\n")
			rest = strings.TrimPrefix(rest, ")")
			rest = strings.TrimPrefix(rest, "\"")
			replacement = heredocToken
		}
		return command[:loc[0]] + replacement + tail + " " + rest, strings.Join(body, "\n"), true
	}
	return command, "", false
}
