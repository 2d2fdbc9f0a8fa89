// Command client is a terminal reference client for the interview
// engine. It starts a session over REST, connects the session channel,
// and feeds typed lines through the transcript aggregator as if they
// were speech recognition events.
//
// Usage:
//
//	client -server http://localhost:8080 -name Ada -role "Software Engineer"
//
// Lines you type are treated as recognition updates for the current
// utterance. Commands:
//
//	/talk       press the push-to-talk gate (new utterance)
//	/release    release the gate and let the utterance settle
//	/advance P  ask the server to advance to phase P
//	/end        end the interview and print the evaluation
//	/quit       disconnect and exit
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/michalfoune/rizma-heygen/internal/channel"
	"github.com/michalfoune/rizma-heygen/internal/config"
	"github.com/michalfoune/rizma-heygen/internal/logging"
	"github.com/michalfoune/rizma-heygen/internal/metrics"
	"github.com/michalfoune/rizma-heygen/internal/protocol"
	"github.com/michalfoune/rizma-heygen/internal/transcript"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "interview server base URL")
	name := flag.String("name", "Candidate", "candidate name")
	role := flag.String("role", "Software Engineer", "target role")
	personality := flag.String("personality", "default", "interviewer personality id")
	auto := flag.Bool("auto", false, "use automatic speech detection instead of push-to-talk")
	flag.Parse()

	logging.Init(logging.Config{Level: "warn", Format: "console"})
	log := logging.Component("client")

	sessionID, err := startSession(*server, *name, *role, *personality)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("session %s started\n", sessionID)

	mode := transcript.ModeManual
	if *auto {
		mode = transcript.ModeAuto
	}
	timings := config.LoadTimings()
	counters := metrics.Default
	agg := transcript.New(transcript.Config{
		Mode:         mode,
		SpeechGrace:  timings.SpeechGrace,
		ManualSettle: timings.ManualSettle,
		AutoSettle:   timings.AutoSettle,
		AutoGap:      timings.AutoGap,
		OnFinalized:  counters.OnUtteranceFinalized,
		OnDiscarded:  counters.OnUtteranceDiscarded,
	}, logging.Component("aggregator"))
	defer agg.Close()

	ch := channel.New(wsBase(*server), func(m protocol.Message) {
		handleServerMessage(m, agg)
	}, log, channel.WithBackoff(timings.ReconnectBackoff), channel.WithStatusFunc(func(connected bool) {
		if connected {
			fmt.Println("[connected]")
		} else {
			fmt.Println("[disconnected, retrying]")
		}
	}))
	defer ch.Close()

	if err := ch.Connect(sessionID); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}

	// Finalized utterances go to the server as transcript entries.
	go func() {
		for text := range pump(agg) {
			fmt.Printf("you> %s\n", text)
			if err := ch.Send(protocol.NewTranscriptEntry(protocol.TranscriptPayload{
				Role:    "candidate",
				Content: text,
			})); err != nil {
				fmt.Printf("[send failed: %v]\n", err)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			ch.Disconnect()
			return
		case line == "/talk":
			agg.GateDown()
			_ = ch.Send(protocol.NewControl(protocol.ActionPTTStart, ""))
		case line == "/release":
			agg.GateUp()
			_ = ch.Send(protocol.NewControl(protocol.ActionPTTStop, ""))
		case line == "/end":
			_ = ch.Send(protocol.NewControl(protocol.ActionEndSession, ""))
		case strings.HasPrefix(line, "/advance "):
			phase := strings.TrimSpace(strings.TrimPrefix(line, "/advance "))
			_ = ch.Send(protocol.NewControl(protocol.ActionAdvancePhase, phase))
		case line != "":
			agg.HandleEvent(line)
		}
	}
}

// pump adapts the aggregator's finals channel so the consumer loop ends
// when the aggregator shuts down.
func pump(agg *transcript.Aggregator) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case text := <-agg.Finals():
				out <- text
			case <-agg.Done():
				return
			}
		}
	}()
	return out
}

func handleServerMessage(m protocol.Message, agg *transcript.Aggregator) {
	switch m.Kind {
	case protocol.KindStateUpdate:
		if p, err := m.State(); err == nil && p.Phase != "" {
			fmt.Printf("[phase: %s]\n", p.Phase)
		}
	case protocol.KindTranscriptEntry:
		if p, err := m.Transcript(); err == nil && p.Role == "interviewer" {
			fmt.Printf("interviewer> %s\n", p.Content)
		}
	case protocol.KindAvatarSpeak:
		if p, err := m.Speak(); err == nil {
			// Mute capture while the system is speaking, roughly as long
			// as the line would take to say out loud.
			agg.SetSystemSpeaking(true)
			duration := time.Duration(len(strings.Fields(p.Text))) * 300 * time.Millisecond
			time.AfterFunc(duration, func() { agg.SetSystemSpeaking(false) })
		}
	case protocol.KindEvaluationResult:
		if p, err := m.Evaluation(); err == nil {
			verdict := "FAILED"
			if p.Passed {
				verdict = "PASSED"
			}
			fmt.Printf("[evaluation: %d/100 %s]\n", p.Score, verdict)
			fmt.Printf("[persuasion %d, technical %d, communication %d]\n",
				p.Feedback.Persuasion, p.Feedback.TechnicalFit, p.Feedback.Communication)
			fmt.Printf("[%s]\n", p.Summary)
		}
	case protocol.KindError:
		if p, err := m.Error(); err == nil {
			fmt.Printf("[server error: %s]\n", p.Message)
		}
	}
}

func startSession(server, name, role, personality string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"candidate_name": name,
		"target_role":    role,
		"personality_id": personality,
	})
	resp, err := http.Post(server+"/api/sessions/start", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %s", resp.Status)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func wsBase(server string) string {
	base := strings.Replace(server, "http", "ws", 1)
	return base + "/ws"
}
