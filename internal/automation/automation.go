// Package automation implements the Automation Matcher (spec §4.I): it
// receives file_written/file_deleted events from the Virtual FS Facade and
// enqueues a task for every enabled rule whose path and filename filters
// match.
package automation

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/objectfs/objectfs/internal/taskqueue"
	"github.com/objectfs/objectfs/pkg/types"
)

// RuleSource lists enabled automation rules for an event, implemented by
// internal/store.
type RuleSource interface {
	ListEnabledRulesForEvent(event types.AutomationEvent) ([]*types.AutomationRule, error)
}

// Matcher implements vfs.EventSink over a rule source and a task queue.
type Matcher struct {
	rules  RuleSource
	queue  *taskqueue.Queue
	logger *slog.Logger

	mu       sync.Mutex
	reCache  map[string]*regexp.Regexp
}

// New creates a Matcher. logger may be nil.
func New(rules RuleSource, queue *taskqueue.Queue, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{rules: rules, queue: queue, logger: logger, reCache: make(map[string]*regexp.Regexp)}
}

// Notify implements vfs.EventSink. It is called synchronously after the
// backend confirms the mutation; enqueueing is fire-and-forget from the
// facade's point of view so a slow or failing rule never blocks the
// caller's write/delete.
func (m *Matcher) Notify(ctx context.Context, event types.AutomationEvent, p string) {
	rules, err := m.rules.ListEnabledRulesForEvent(event)
	if err != nil {
		m.logger.Error("automation: failed to list rules", "event", event, "error", err)
		return
	}

	for _, rule := range rules {
		if !m.matches(rule, p) {
			continue
		}
		info := map[string]any{
			"path":           p,
			"event":          string(event),
			"processor_type": rule.ProcessorType,
			"rule_id":        rule.ID,
			"config":         rule.ProcessorConfig,
		}
		if _, err := m.queue.Enqueue("process_file", info); err != nil {
			m.logger.Error("automation: failed to enqueue task", "rule", rule.ID, "path", p, "error", err)
		}
	}
}

// matches applies the rule's path-prefix and filename-regex filters.
// Either filter left empty is treated as "match everything".
func (m *Matcher) matches(rule *types.AutomationRule, p string) bool {
	if rule.PathPattern != "" && !strings.HasPrefix(p, rule.PathPattern) {
		return false
	}
	if rule.FilenameRegex == "" {
		return true
	}
	re, err := m.compile(rule.FilenameRegex)
	if err != nil {
		m.logger.Warn("automation: invalid filename_regex", "rule", rule.ID, "pattern", rule.FilenameRegex, "error", err)
		return false
	}
	return re.MatchString(path.Base(p))
}

func (m *Matcher) compile(pattern string) (*regexp.Regexp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if re, ok := m.reCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.reCache[pattern] = re
	return re, nil
}
