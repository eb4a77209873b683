// Package health classifies interface detail output into link-health results.
package health

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// Failure reasons reported for critical results.
const (
	ReasonErrDisabled = "Err-Disabled"
	ReasonLinkDown    = "Link Down"
)

// Result represents the result of a health check
type Result struct {
	Check     string        `json:"check"`
	Status    Status        `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Message   string        `json:"message"`
	Details   interface{}   `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report contains all health check results for one interface
type Report struct {
	Device    string        `json:"device"`
	Interface string        `json:"interface"`
	Timestamp time.Time     `json:"timestamp"`
	Overall   Status        `json:"overall"`
	Results   []Result      `json:"results"`
	Duration  time.Duration `json:"duration"`
}

// Critical returns the first critical result, or nil.
func (r *Report) Critical() *Result {
	for i := range r.Results {
		if r.Results[i].Status == StatusCritical {
			return &r.Results[i]
		}
	}
	return nil
}

// Warnings returns the messages of every warning result.
func (r *Report) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		if res.Status == StatusWarning {
			out = append(out, res.Message)
		}
	}
	return out
}

// Check defines the interface for health checks over interface output
type Check interface {
	Name() string
	Run(output string) Result
}

// Checker runs health checks on interface detail output
type Checker struct {
	checks []Check
}

// NewChecker creates a new health checker with default checks. Terminating
// checks come first so the first critical result is the most specific one.
func NewChecker() *Checker {
	return &Checker{
		checks: []Check{
			&ErrDisabledCheck{},
			&LinkCheck{},
			&DropsCheck{},
			&CRCCheck{},
			&DuplexCheck{},
		},
	}
}

// ListChecks returns the names of the registered checks in run order.
func (c *Checker) ListChecks() []string {
	names := make([]string, 0, len(c.checks))
	for _, check := range c.checks {
		names = append(names, check.Name())
	}
	return names
}

// Run executes all health checks and returns a report
func (c *Checker) Run(device, iface, output string) *Report {
	start := time.Now()
	report := &Report{
		Device:    device,
		Interface: iface,
		Timestamp: start,
		Results:   make([]Result, 0, len(c.checks)),
		Overall:   StatusOK,
	}

	if strings.TrimSpace(output) == "" {
		report.Overall = StatusUnknown
		report.Duration = time.Since(start)
		return report
	}

	for _, check := range c.checks {
		result := check.Run(output)
		report.Results = append(report.Results, result)

		// Update overall status (worst wins)
		if result.Status == StatusCritical {
			report.Overall = StatusCritical
		} else if result.Status == StatusWarning && report.Overall != StatusCritical {
			report.Overall = StatusWarning
		} else if result.Status == StatusUnknown && report.Overall == StatusOK {
			report.Overall = StatusUnknown
		}
	}

	report.Duration = time.Since(start)
	return report
}

// RunCheck runs a specific health check by name
func (c *Checker) RunCheck(name, output string) (*Result, error) {
	for _, check := range c.checks {
		if check.Name() == name {
			result := check.Run(output)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("health check '%s' not found", name)
}

func newResult(name string) Result {
	return Result{Check: name, Status: StatusOK, Timestamp: time.Now()}
}

// ErrDisabledCheck detects ports shut down by a protection feature
type ErrDisabledCheck struct{}

// Name returns the check name
func (c *ErrDisabledCheck) Name() string { return "err-disabled" }

var errDisabledRe = regexp.MustCompile(`(?i)err-?disabled?`)

// Run executes the err-disabled check
func (c *ErrDisabledCheck) Run(output string) Result {
	result := newResult(c.Name())
	if m := errDisabledRe.FindString(output); m != "" {
		result.Status = StatusCritical
		result.Reason = ReasonErrDisabled
		result.Message = fmt.Sprintf("interface is %s", m)
	} else {
		result.Message = "not err-disabled"
	}
	result.Duration = time.Since(result.Timestamp)
	return result
}

// LinkCheck detects an operationally down link
type LinkCheck struct{}

// Name returns the check name
func (c *LinkCheck) Name() string { return "link" }

var linkDownMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)line protocol is down`),
	regexp.MustCompile(`(?i)\bis (?:administratively )?down\b`),
	regexp.MustCompile(`(?i)physical link is down`),
	regexp.MustCompile(`(?i)current state\s*:\s*(?:administratively )?down`),
	regexp.MustCompile(`(?i)link is down`),
	regexp.MustCompile(`\bstate DOWN\b`),
	regexp.MustCompile(`(?i)link status\s*:\s*down`),
}

// Run executes the link check
func (c *LinkCheck) Run(output string) Result {
	result := newResult(c.Name())
	for _, re := range linkDownMarkers {
		if m := re.FindString(output); m != "" {
			result.Status = StatusCritical
			result.Reason = ReasonLinkDown
			result.Message = m
			result.Duration = time.Since(result.Timestamp)
			return result
		}
	}
	result.Message = "link up"
	result.Duration = time.Since(result.Timestamp)
	return result
}

// DropsCheck reports non-zero input/output drop counters
type DropsCheck struct{}

// Name returns the check name
func (c *DropsCheck) Name() string { return "drops" }

var dropCounters = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total (?:input|output) drops:\s*(\d+)`),
	regexp.MustCompile(`(?i)(?:input|output) (?:queue )?drops:\s*(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s+(?:input|output) drops?\b`),
	regexp.MustCompile(`(?i)dropped\s*:?\s*(\d+)`),
	regexp.MustCompile(`(?i)discard(?:ed|s)?\s*:\s*(\d+)`),
}

// Run executes the drops check
func (c *DropsCheck) Run(output string) Result {
	result := newResult(c.Name())
	total := sumCounters(output, dropCounters)
	result.Details = map[string]int{"drops": total}
	if total > 0 {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("%d packets dropped", total)
	} else {
		result.Message = "no drops"
	}
	result.Duration = time.Since(result.Timestamp)
	return result
}

// CRCCheck reports non-zero CRC error counters
type CRCCheck struct{}

// Name returns the check name
func (c *CRCCheck) Name() string { return "crc" }

var crcCounters = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s+CRC`),
	regexp.MustCompile(`(?i)CRC(?:\s+errors)?\s*:\s*(\d+)`),
}

// Run executes the CRC check
func (c *CRCCheck) Run(output string) Result {
	result := newResult(c.Name())
	total := sumCounters(output, crcCounters)
	result.Details = map[string]int{"crc": total}
	if total > 0 {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("%d CRC errors", total)
	} else {
		result.Message = "no CRC errors"
	}
	result.Duration = time.Since(result.Timestamp)
	return result
}

// DuplexCheck reports a half-duplex negotiation
type DuplexCheck struct{}

// Name returns the check name
func (c *DuplexCheck) Name() string { return "duplex" }

var halfDuplexRe = regexp.MustCompile(`(?i)half[- ]duplex|duplex\s*:?\s*half|\(half\)`)

// Run executes the duplex check
func (c *DuplexCheck) Run(output string) Result {
	result := newResult(c.Name())
	if halfDuplexRe.MatchString(output) {
		result.Status = StatusWarning
		result.Message = "half-duplex negotiated"
	} else {
		result.Message = "full duplex or not reported"
	}
	result.Duration = time.Since(result.Timestamp)
	return result
}

// sumCounters adds up every counter captured by the first pattern that
// matches each line. Patterns overlap, so one line is counted once.
func sumCounters(output string, patterns []*regexp.Regexp) int {
	total := 0
	for _, line := range strings.Split(output, "\n") {
		for _, re := range patterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if n, err := strconv.Atoi(m[1]); err == nil {
				total += n
			}
			break
		}
	}
	return total
}
