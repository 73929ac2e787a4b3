package helpers

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Mode selects how a command renders its result.
type Mode string

const (
	ModeJSON Mode = "json"
	ModeText Mode = "text"
)

// isRunningInCI checks if we're running in a CI/CD environment
func isRunningInCI() bool {
	if os.Getenv("CI") != "" {
		return true
	}
	ciVars := []string{
		"JENKINS_HOME",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"TRAVIS",
		"BUILDKITE",
		"DRONE",
		"TF_BUILD",           // Azure DevOps
		"BITBUCKET_COMMIT",   // Bitbucket Pipelines
		"CODEBUILD_BUILD_ID", // AWS CodeBuild
		"TEAMCITY_VERSION",
		"BUILD_NUMBER",
		"CONTINUOUS_INTEGRATION",
	}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// checkExplicitFormat reads the --format flag when the command defines one.
func checkExplicitFormat(cmd *cobra.Command) (Mode, bool) {
	flag := cmd.Flags().Lookup("format")
	if flag == nil || !flag.Changed {
		return ModeJSON, false
	}
	switch flag.Value.String() {
	case string(OutputFormatJSON):
		return ModeJSON, true
	case string(OutputFormatText):
		return ModeText, true
	default:
		return ModeJSON, false
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// isInteractiveEnvironment checks if we're in an interactive environment
func isInteractiveEnvironment() bool {
	if isRunningInCI() {
		return false
	}
	if !isTerminal(os.Stdout) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "dumb" && term != ""
}

// DetectMode picks text output for terminals and JSON for pipes and CI, unless
// --format says otherwise.
func DetectMode(cmd *cobra.Command) Mode {
	if mode, found := checkExplicitFormat(cmd); found {
		return mode
	}
	if isInteractiveEnvironment() {
		return ModeText
	}
	return ModeJSON
}

// ShouldUseColor reports whether styled output should carry ANSI colors.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isInteractiveEnvironment()
}
