package dependency

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Dependency represents an external program the bot shells out to
type Dependency struct {
	Name        string
	Command     string
	Args        []string
	Required    bool
	Description string
	InstallCmd  string
}

// CheckResult represents the result of a dependency check
type CheckResult struct {
	Dependency  Dependency
	Available   bool
	Version     string
	Error       error
	InstallHint string
}

// Runner runs a command and returns its standard output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Checker handles dependency checking
type Checker struct {
	timeout time.Duration
	run     Runner
}

// NewChecker creates a new dependency checker. A nil run uses ExecRunner.
func NewChecker(timeout time.Duration, run Runner) *Checker {
	if run == nil {
		run = ExecRunner
	}
	return &Checker{
		timeout: timeout,
		run:     run,
	}
}

// CheckAll checks all dependencies and returns results
func (c *Checker) CheckAll(ctx context.Context, deps []Dependency) []CheckResult {
	results := make([]CheckResult, 0, len(deps))
	for _, dep := range deps {
		results = append(results, c.checkSingle(ctx, dep))
	}
	return results
}

// checkSingle checks a single dependency
func (c *Checker) checkSingle(ctx context.Context, dep Dependency) CheckResult {
	result := CheckResult{Dependency: dep}

	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.run(cmdCtx, dep.Command, dep.Args...)
	if err != nil {
		result.Error = err
		result.InstallHint = dep.InstallCmd
		return result
	}

	result.Available = true
	result.Version = firstLine(string(output))
	return result
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// GetSystemDependencies returns the programs the encoder and the default resolver need
func GetSystemDependencies() []Dependency {
	return []Dependency{
		{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Args:        []string{"-version"},
			Required:    true,
			Description: "Decodes the remote stream for the Opus encoder",
			InstallCmd:  "brew install ffmpeg (macOS) | apt-get install ffmpeg (Ubuntu) | yum install ffmpeg (CentOS)",
		},
		{
			Name:        "yt-dlp",
			Command:     "yt-dlp",
			Args:        []string{"--version"},
			Required:    true,
			Description: "Resolves search queries and pages to direct stream URLs",
			InstallCmd:  "pip install yt-dlp | brew install yt-dlp",
		},
	}
}

// ValidateEnvironment checks deps and analyzes the results
func ValidateEnvironment(ctx context.Context, checker *Checker, deps []Dependency) *EnvironmentReport {
	report := &EnvironmentReport{
		CheckTime: time.Now(),
		Results:   checker.CheckAll(ctx, deps),
	}
	report.analyzeResults()
	return report
}

// EnvironmentReport contains the results of environment validation
type EnvironmentReport struct {
	CheckTime         time.Time
	Results           []CheckResult
	RequiredMissing   []string
	OptionalMissing   []string
	RecommendedAction string
	Severity          string
}

// analyzeResults analyzes the check results and provides recommendations
func (r *EnvironmentReport) analyzeResults() {
	r.RequiredMissing = nil
	r.OptionalMissing = nil

	for _, result := range r.Results {
		if result.Available {
			continue
		}
		if result.Dependency.Required {
			r.RequiredMissing = append(r.RequiredMissing, result.Dependency.Name)
		} else {
			r.OptionalMissing = append(r.OptionalMissing, result.Dependency.Name)
		}
	}

	switch {
	case len(r.RequiredMissing) > 0:
		r.Severity = "CRITICAL"
		r.RecommendedAction = "Install required dependencies before starting the bot"
	case len(r.OptionalMissing) > 0:
		r.Severity = "WARNING"
		r.RecommendedAction = "Consider installing optional dependencies for full functionality"
	default:
		r.Severity = "OK"
		r.RecommendedAction = "All dependencies are available"
	}
}

// IsHealthy returns true if all required dependencies are available
func (r *EnvironmentReport) IsHealthy() bool {
	return len(r.RequiredMissing) == 0
}

// GetInstallCommands returns installation commands for missing dependencies
func (r *EnvironmentReport) GetInstallCommands() []string {
	var commands []string
	for _, result := range r.Results {
		if !result.Available && result.InstallHint != "" {
			commands = append(commands, fmt.Sprintf("# %s\n%s", result.Dependency.Description, result.InstallHint))
		}
	}
	return commands
}

// GenerateReport generates a human-readable report
func (r *EnvironmentReport) GenerateReport() string {
	var report strings.Builder

	report.WriteString("=== loopmuse Environment Report ===\n")
	fmt.Fprintf(&report, "Check Time: %s\n", r.CheckTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&report, "Severity: %s\n", r.Severity)
	fmt.Fprintf(&report, "Recommended Action: %s\n\n", r.RecommendedAction)

	report.WriteString("Dependency Status:\n")
	for _, result := range r.Results {
		status := "✓ Available"
		if !result.Available {
			status = "✗ Missing"
		}

		required := ""
		if result.Dependency.Required {
			required = " (Required)"
		}

		fmt.Fprintf(&report, "  %s: %s%s\n", result.Dependency.Name, status, required)
		if result.Version != "" {
			fmt.Fprintf(&report, "    Version: %s\n", result.Version)
		}
		if result.Error != nil {
			fmt.Fprintf(&report, "    Error: %s\n", result.Error.Error())
		}
	}

	if len(r.RequiredMissing) > 0 {
		report.WriteString("\n⚠️  Required Dependencies Missing:\n")
		for _, dep := range r.RequiredMissing {
			fmt.Fprintf(&report, "  - %s\n", dep)
		}
	}

	if len(r.OptionalMissing) > 0 {
		report.WriteString("\nOptional Dependencies Missing:\n")
		for _, dep := range r.OptionalMissing {
			fmt.Fprintf(&report, "  - %s\n", dep)
		}
	}

	if cmds := r.GetInstallCommands(); len(cmds) > 0 {
		report.WriteString("\nInstallation Commands:\n")
		for _, cmd := range cmds {
			fmt.Fprintf(&report, "%s\n\n", cmd)
		}
	}

	return report.String()
}

// CheckFFmpegCodecs reports which of codecs the local ffmpeg build lists
func (c *Checker) CheckFFmpegCodecs(ctx context.Context, codecs ...string) (map[string]bool, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.run(cmdCtx, "ffmpeg", "-hide_banner", "-codecs")
	if err != nil {
		return nil, fmt.Errorf("failed to check FFmpeg codecs: %w", err)
	}

	features := make(map[string]bool, len(codecs))
	for _, codec := range codecs {
		features[codec] = strings.Contains(string(output), codec)
	}
	return features, nil
}
