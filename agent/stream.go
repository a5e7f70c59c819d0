// Streaming agent loop.
//
// Same control flow and invariants as the batch loop, observable as a
// sequence of typed events instead of a single return value.

package agent

import (
	"context"
	"strings"

	"github.com/mkondo/datalyst/llm"
	"github.com/mkondo/datalyst/model"
)

const eventBuffer = 16

// RunStream executes the agent loop and delivers events on the returned
// channel: text_delta fragments as the model produces them, tool_start and
// tool_result around every tool invocation, and exactly one terminal event —
// done on success or degraded completion, error on a model failure. The
// channel is closed after the terminal event.
//
// Setup failures (the catalog fetch) are returned directly, before any event
// is produced. Once streaming has begun, cancelling ctx abandons the run:
// remaining rounds are skipped and the channel is closed without a terminal
// event, since the consumer is gone.
func (s *Service) RunStream(ctx context.Context, apiKey, authToken string, history []model.Turn, catalogHint string) (<-chan Event, error) {
	client := s.newModel(apiKey)
	caller := s.newCaller(authToken)

	tools, err := s.catalog.Tools(ctx, authToken)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		messages := fromHistory(history)
		system := s.buildSystem(catalogHint)
		log := []model.ToolCallRecord{}
		var answer strings.Builder

		for i := 0; i < s.cfg.MaxIterations; i++ {
			stream, err := client.StreamMessage(ctx, llm.Request{
				Model:     s.cfg.Model,
				MaxTokens: s.cfg.MaxTokens,
				System:    system,
				Messages:  messages,
				Tools:     tools,
			})
			if err != nil {
				send(errorEvent(err))
				return
			}

			for stream.Next() {
				text := stream.Text()
				answer.WriteString(text)
				if !send(textDeltaEvent(text)) {
					stream.Close()
					return
				}
			}

			resp, err := stream.Final()
			stream.Close()
			if err != nil {
				send(errorEvent(err))
				return
			}

			if resp.StopReason == llm.StopToolUse {
				messages = append(messages, llm.Message{Role: model.RoleAssistant, Content: resp.Content})

				results, err := runToolRound(ctx, caller, resp.Content, &log, send)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					send(errorEvent(err))
					return
				}
				messages = append(messages, llm.Message{Role: model.RoleUser, Content: results})
				continue
			}

			// end_turn, or an unrecognized stop reason: either way the run is
			// over and the degraded case still terminates with a done event.
			break
		}

		send(doneEvent(answer.String()))
	}()

	return events, nil
}
