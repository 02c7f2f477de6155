package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"giveaway-quiz-service/internal/client"
	"giveaway-quiz-service/internal/domain"
	"giveaway-quiz-service/internal/identity"
	"github.com/spf13/cobra"
)

// NewPlayCmd plays a room from the terminal as a participant.
func NewPlayCmd() *cobra.Command {
	var serverURL, roomCode, identityPath string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz room as a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identityPath == "" {
				identityPath = defaultIdentityPath()
			}
			p := player{
				client:   client.New(serverURL, nil),
				identity: identity.New(identity.NewFileStore(identityPath), nil),
				in:       bufio.NewScanner(cmd.InOrStdin()),
				out:      cmd.OutOrStdout(),
			}
			return p.play(cmd.Context(), strings.ToUpper(strings.TrimSpace(roomCode)))
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "quiz server base URL")
	cmd.Flags().StringVar(&roomCode, "room", "", "room code (empty plays the current public room)")
	cmd.Flags().StringVar(&identityPath, "identity", "", "file that keeps this device's visitor id")
	return cmd
}

func defaultIdentityPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "giveaway-quiz", "identity.json")
}

type player struct {
	client   *client.Client
	identity *identity.Identity
	in       *bufio.Scanner
	out      io.Writer
}

var errNoInput = errors.New("input closed before the quiz was finished")

func (p player) play(ctx context.Context, roomCode string) error {
	if roomCode != "" {
		if done, err := p.identity.HasCompleted(roomCode); err != nil {
			return err
		} else if done {
			fmt.Fprintln(p.out, "You already finished this quiz.")
			return nil
		}
	}

	status, err := p.client.RoomStatus(ctx, roomCode)
	if err != nil {
		return err
	}
	if !status.Available {
		if status.TooLate {
			fmt.Fprintln(p.out, "Too late! All winner slots are taken.")
		} else {
			fmt.Fprintln(p.out, "Room not found or not active.")
		}
		return nil
	}
	room := status.Room
	if done, err := p.identity.HasCompleted(room.Code); err != nil {
		return err
	} else if done {
		fmt.Fprintln(p.out, "You already finished this quiz.")
		return nil
	}

	visitor, err := p.identity.VisitorID()
	if err != nil {
		return err
	}
	session, err := p.identity.NewSessionID(room.Code)
	if err != nil {
		return err
	}
	outcome, err := p.client.Join(ctx, room.Code, session, visitor)
	if err != nil {
		return err
	}
	if p.reportMiss(outcome) {
		return nil
	}

	fmt.Fprintf(p.out, "%s (room %s)\nPrize: %s\nWinner slots: %d, claimed: %d\n\n",
		room.Title, room.Code, room.Prize, room.MaxParticipants, status.Completed)
	for i, q := range status.Questions {
		if err := p.ask(i+1, len(status.Questions), q); err != nil {
			return err
		}
	}

	done, err := p.client.Complete(ctx, session)
	if err != nil {
		return err
	}
	if p.reportMiss(done.Outcome) {
		return nil
	}
	if err := p.identity.MarkCompleted(room.Code); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "\nYou won! Claim your prize: %s\n", done.RedirectLink)
	return nil
}

// ask repeats a question until it is answered correctly.
func (p player) ask(n, total int, q domain.Question) error {
	fmt.Fprintf(p.out, "Question %d/%d: %s\n", n, total, q.Text)
	for {
		fmt.Fprint(p.out, "> ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return err
			}
			return errNoInput
		}
		answer := p.in.Text()
		switch {
		case strings.EqualFold(strings.TrimSpace(answer), "hint"):
			if q.Hint == "" {
				fmt.Fprintln(p.out, "No hint for this one.")
			} else {
				fmt.Fprintf(p.out, "Hint: %s\n", q.Hint)
			}
		case domain.AnswerMatches(answer, q.CorrectAnswer):
			fmt.Fprintln(p.out, "Correct!")
			return nil
		default:
			fmt.Fprintln(p.out, "Not quite, try again (type \"hint\" for a clue).")
		}
	}
}

func (p player) reportMiss(outcome domain.Outcome) bool {
	switch outcome {
	case domain.OutcomeFull:
		fmt.Fprintln(p.out, "Too late! All winner slots are taken.")
		return true
	case domain.OutcomeNotFound:
		fmt.Fprintln(p.out, "Room not found or not active.")
		return true
	}
	return false
}
