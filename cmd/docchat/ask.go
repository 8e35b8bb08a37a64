package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/service"
)

var streamAnswers bool

var askCmd = &cobra.Command{
	Use:   "ask <document-id> [question]",
	Short: "Ask questions about a document",
	Long: `Answers one question, or starts an interactive session when no question is given.

In a session, /history prints the conversation, /clear clears it and exit quits.
Conversations last for the session only.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&streamAnswers, "stream", false, "print the answer as it is generated")
}

func runAsk(cmd *cobra.Command, args []string) error {
	_, a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	documentID := args[0]
	doc, err := a.Service.Document(documentID)
	if err != nil {
		return err
	}

	if len(args) == 2 {
		return ask(cmd.Context(), a.Service, documentID, args[1])
	}

	color.Cyan("Chat with %s (type 'exit' to quit)", doc.OriginalName)
	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "/quit":
			return nil
		case "/history":
			printHistory(a.Service, documentID)
			continue
		case "/clear":
			if err := a.Service.ClearHistory(documentID); err != nil {
				color.Red("Error: %v\n", err)
			} else {
				color.Yellow("History cleared\n")
			}
			continue
		}

		if err := ask(cmd.Context(), a.Service, documentID, query); err != nil {
			color.Red("Error: %v\n", err)
		}
	}
}

func ask(ctx context.Context, svc *service.Service, documentID, query string) error {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	if !streamAnswers {
		answer, err := svc.Chat(ctx, documentID, query)
		if err != nil {
			return err
		}
		assistantPrompt("Assistant: ")
		fmt.Println(answer.Text)
		printSources(answer.Sources)
		return nil
	}

	assistantPrompt("Assistant: ")
	answer, err := svc.Stream(ctx, documentID, query, func(chunk string) error {
		if strings.HasPrefix(chunk, generation.SourcesMarker) {
			return nil
		}
		fmt.Print(chunk)
		return nil
	})
	fmt.Println()
	if err != nil {
		return err
	}
	printSources(answer.Sources)
	return nil
}

func printSources(sources []domain.SourceRef) {
	if len(sources) == 0 {
		return
	}
	faint := color.New(color.Faint).PrintfFunc()
	for _, s := range sources {
		page := "?"
		if s.Page > 0 {
			page = fmt.Sprint(s.Page)
		}
		faint("  [%d] %s p.%s: %s\n", s.Index, s.Source, page, preview(s.Content, 80))
	}
}

func printHistory(svc *service.Service, documentID string) {
	messages := svc.History(documentID)
	if len(messages) == 0 {
		color.Yellow("No messages yet\n")
		return
	}
	for _, m := range messages {
		c := color.New(color.FgGreen)
		if m.Role == "assistant" {
			c = color.New(color.FgCyan)
		}
		c.Printf("%s: ", m.Role)
		fmt.Println(m.Content)
	}
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
