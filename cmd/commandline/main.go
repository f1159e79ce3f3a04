package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/YoungApple/voice-recorder/pkg/sdk"
	"github.com/YoungApple/voice-recorder/pkg/utils"
)

var client *sdk.Client

func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	// Create backend client
	client = sdk.NewClient(
		cfg.GetWithDefault("BACKEND_URL", "http://localhost:8080"),
		cfg.Get("API_KEY"))

	// Start interactive session
	ctx := context.Background()
	if err := startInteractiveSession(ctx); err != nil {
		log.Fatalf("Failed to start interactive session: %v", err)
	}
}

// startInteractiveSession initializes the command line interface for the voice recorder
func startInteractiveSession(ctx context.Context) error {
	fmt.Println("Voice recorder started. Type 'help' for commands, 'exit' to quit.")

	// Create scanner for reading user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())

		if input == "exit" {
			break
		}

		if input == "" {
			continue
		}

		fields := strings.Fields(input)
		if err := runCommand(ctx, fields[0], fields[1:]); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	return nil
}

// runCommand dispatches one interactive command
func runCommand(ctx context.Context, command string, args []string) error {
	switch command {
	case "help":
		fmt.Println("Commands:")
		fmt.Println("  record            start a new recording")
		fmt.Println("  stop              stop the active recording")
		fmt.Println("  cancel            cancel the active recording")
		fmt.Println("  analyze <uuid>    transcribe and analyze a session")
		fmt.Println("  show <uuid>       show a session")
		fmt.Println("  list [search]     list sessions")
		fmt.Println("  delete <uuid>     delete a session")
		fmt.Println("  exit              quit")
		return nil

	case "record":
		id, err := client.StartRecording(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Recording started: %s\n", id)
		return nil

	case "stop":
		session, err := client.StopRecording(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Recording stopped: %s (%d ms)\n", session.ID, session.DurationMS)
		return nil

	case "cancel":
		if err := client.CancelRecording(ctx); err != nil {
			return err
		}
		fmt.Println("Recording cancelled")
		return nil

	case "analyze":
		if len(args) != 1 {
			return fmt.Errorf("usage: analyze <uuid>")
		}
		analysis, err := client.Analyze(ctx, args[0])
		if err != nil {
			return err
		}
		printAnalysis(analysis)
		return nil

	case "show":
		if len(args) != 1 {
			return fmt.Errorf("usage: show <uuid>")
		}
		session, err := client.GetSession(ctx, args[0])
		if err != nil {
			return err
		}
		printSession(session)
		return nil

	case "list":
		req := &sdk.ListSessionsRequest{Limit: 20}
		if len(args) > 0 {
			req.Search = strings.Join(args, " ")
		}
		resp, err := client.ListSessions(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("%d session(s):\n", resp.Count)
		for _, session := range resp.Sessions {
			title := session.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("  %s  %s  %s\n", session.ID, session.CreatedAt.Format("2006-01-02 15:04"), title)
		}
		return nil

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <uuid>")
		}
		if err := client.DeleteSession(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Session deleted")
		return nil

	default:
		return fmt.Errorf("unknown command %q, type 'help'", command)
	}
}

func printSession(session *sdk.Session) {
	fmt.Printf("Session %s\n", session.ID)
	fmt.Printf("  Title:    %s\n", session.Title)
	fmt.Printf("  Status:   %s\n", session.Status)
	fmt.Printf("  Duration: %d ms\n", session.DurationMS)
	if session.Transcript != nil {
		fmt.Printf("  Transcript (%s, %s): %s\n",
			session.Transcript.Language, session.Transcript.Provider, session.Transcript.Content)
	}
	if session.Analysis != nil {
		printAnalysis(session.Analysis)
	}
}

func printAnalysis(analysis *sdk.Analysis) {
	fmt.Printf("  Analysis: %s\n", analysis.Title)
	fmt.Printf("  Summary:  %s\n", analysis.Summary)
	for _, idea := range analysis.Ideas {
		fmt.Printf("    idea: %s\n", idea)
	}
	for _, task := range analysis.Tasks {
		fmt.Printf("    task [%s]: %s\n", task.Priority, task.Title)
	}
	for _, note := range analysis.StructuredNotes {
		fmt.Printf("    note (%s): %s\n", note.NoteType, note.Title)
	}
}
