package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-ai/agentchain/pipeline"
	"github.com/relabs-ai/agentchain/types"
)

const pollInterval = 100 * time.Millisecond

// runAuto starts a run and waits for a terminal status. updates carries
// every snapshot the controller emits.
func runAuto(c *pipeline.Controller, input string, agents []types.AgentSpec, updates <-chan pipeline.Snapshot, logger *zap.Logger) int {
	if err := c.Start(input, agents); err != nil {
		logger.Error("start rejected", zap.Error(err))
		return 1
	}

	reported := make(map[string]bool)
	for {
		var snap pipeline.Snapshot
		select {
		case snap = <-updates:
		case <-time.After(pollInterval):
			// Listener sends are best-effort; fall back to polling so a
			// dropped terminal snapshot cannot hang the run.
			snap = c.Snapshot()
		}
		for _, entry := range snap.History {
			if entry.Status == types.HistoryCompleted && !reported[entry.ID] {
				reported[entry.ID] = true
				fmt.Printf("\n=== %s (agent %d) ===\n%s\n", entry.AgentName, entry.AgentID, entry.Response)
			}
		}
		switch snap.Status {
		case types.StatusCompleted:
			fmt.Printf("\nRun completed: %d agents.\n", len(snap.History))
			return 0
		case types.StatusError:
			fmt.Fprintf(os.Stderr, "\nRun failed: %s\n", snap.Error)
			return 1
		}
	}
}

// runManual drives a run interactively, suspending at each approval gate.
func runManual(c *pipeline.Controller, input string, agents []types.AgentSpec, logger *zap.Logger) int {
	if err := c.Start(input, agents); err != nil {
		logger.Error("start rejected", zap.Error(err))
		return 1
	}

	stdin := bufio.NewScanner(os.Stdin)
	for {
		snap := waitForDecision(c)
		switch snap.Status {
		case types.StatusIdle:
			fmt.Println("\nRun stopped.")
			return 0
		case types.StatusCompleted:
			fmt.Printf("\nRun completed: %d agents.\n", len(snap.History))
			return 0
		case types.StatusError:
			fmt.Fprintf(os.Stderr, "\nRun failed: %s\n", snap.Error)
			if !promptYesNo(stdin, "Retry current agent?") {
				return 1
			}
			if err := c.Retry(); err != nil {
				fmt.Fprintf(os.Stderr, "Retry rejected: %v\n", err)
				return 1
			}
			continue
		}

		agent := snap.Agents[snap.CurrentAgent]
		switch agent.Phase {
		case types.PhaseIdle:
			if err := c.ProcessCurrent(); err != nil {
				fmt.Fprintf(os.Stderr, "Cannot process agent: %v\n", err)
				return 1
			}

		case types.PhasePromptDraft:
			fmt.Printf("\n--- Prompt for agent %d (step %d/%d) ---\n%s\n",
				snap.CurrentAgent, snap.StepNumber, snap.TotalSteps, agent.Prompt)
			if !handlePromptGate(c, stdin) {
				return 0
			}

		case types.PhaseResponseDraft:
			fmt.Printf("\n--- Response from agent %d ---\n%s\n", snap.CurrentAgent, agent.Response)
			if !handleResponseGate(c, stdin) {
				return 0
			}

		case types.PhaseComplete:
			if err := c.ProceedToNext(); err != nil {
				fmt.Fprintf(os.Stderr, "Cannot proceed: %v\n", err)
				return 1
			}
		}
	}
}

// waitForDecision blocks until the run needs user attention or ends.
func waitForDecision(c *pipeline.Controller) pipeline.Snapshot {
	for {
		snap := c.Snapshot()
		switch snap.Status {
		case types.StatusCompleted, types.StatusError, types.StatusIdle:
			return snap
		}
		phase := snap.Agents[snap.CurrentAgent].Phase
		switch phase {
		case types.PhaseIdle, types.PhasePromptDraft, types.PhaseResponseDraft, types.PhaseComplete:
			return snap
		}
		time.Sleep(pollInterval)
	}
}

// handlePromptGate reads one decision for a drafted prompt. Returns false
// when the user stops the run.
func handlePromptGate(c *pipeline.Controller, stdin *bufio.Scanner) bool {
	for {
		fmt.Print("[a]pprove / [e]dit / [q]uit > ")
		cmd, rest, ok := readCommand(stdin)
		if !ok {
			return false
		}
		switch cmd {
		case "a", "approve":
			if err := c.ApprovePrompt(); err != nil {
				fmt.Fprintf(os.Stderr, "approve failed: %v\n", err)
			}
			return true
		case "e", "edit":
			if rest == "" {
				fmt.Print("new prompt text > ")
				if !stdin.Scan() {
					return false
				}
				rest = stdin.Text()
			}
			if err := c.EditPrompt(rest); err != nil {
				fmt.Fprintf(os.Stderr, "edit failed: %v\n", err)
			}
		case "q", "quit":
			c.Stop()
			return false
		default:
			fmt.Println("unknown command")
		}
	}
}

// handleResponseGate reads one decision for a drafted response. Returns
// false when the user stops the run.
func handleResponseGate(c *pipeline.Controller, stdin *bufio.Scanner) bool {
	for {
		fmt.Print("[a]pprove / [r]eject <reason> / [e]dit / [q]uit > ")
		cmd, rest, ok := readCommand(stdin)
		if !ok {
			return false
		}
		switch cmd {
		case "a", "approve":
			if err := c.ApproveResponse(); err != nil {
				fmt.Fprintf(os.Stderr, "approve failed: %v\n", err)
			}
			return true
		case "r", "reject":
			if err := c.RejectResponse(rest); err != nil {
				fmt.Fprintf(os.Stderr, "reject failed: %v\n", err)
			}
			return true
		case "e", "edit":
			if rest == "" {
				fmt.Print("new response text > ")
				if !stdin.Scan() {
					return false
				}
				rest = stdin.Text()
			}
			if err := c.EditResponse(rest); err != nil {
				fmt.Fprintf(os.Stderr, "edit failed: %v\n", err)
			}
		case "q", "quit":
			c.Stop()
			return false
		default:
			fmt.Println("unknown command")
		}
	}
}

func readCommand(stdin *bufio.Scanner) (cmd, rest string, ok bool) {
	if !stdin.Scan() {
		return "", "", false
	}
	line := strings.TrimSpace(stdin.Text())
	cmd, rest, _ = strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest), true
}

func promptYesNo(stdin *bufio.Scanner, question string) bool {
	fmt.Printf("%s [y/N] > ", question)
	if !stdin.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(stdin.Text()))
	return answer == "y" || answer == "yes"
}
