package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 65 * time.Second}

func main() {
	server := flag.String("server", "http://localhost:3210", "giffly server URL")
	user := flag.String("user", "cli-user", "User name sent with requests")
	raw := flag.Bool("json", false, "Print the raw recommendation result instead of the chat reply")
	flag.Parse()

	fmt.Println("giffly gift assistant")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Describe the occasion and budget, e.g. «букет на свадьбу до 5000 рублей».")
	fmt.Println("Commands: /new, /health, /status, /flush, exit")
	fmt.Println("---")

	fetchHealth(*server)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			fmt.Println("Bye!")
			return
		case input == "/health":
			fetchHealth(*server)
		case input == "/status":
			fetchStatus(*server)
		case input == "/flush":
			flushCache(*server)
		case *raw && !strings.HasPrefix(input, "/"):
			fetchResult(*server, input)
		default:
			sendMessage(*server, *user, input)
		}
	}
}

func fetchHealth(server string) {
	resp, err := client.Get(server + "/api/health")
	if err != nil {
		printError("Server unreachable: %v", err)
		return
	}
	defer resp.Body.Close()

	var h map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		printError("Failed to parse health: %v", err)
		return
	}
	fmt.Printf("Status: %s | AI analysis: %s\n", h["status"], h["analysis"])
}

func fetchStatus(server string) {
	resp, err := client.Get(server + "/api/gateway/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var statuses []struct {
		Platform  string `json:"platform"`
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
		Details   string `json:"details,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Println("Gateway Status:")
	for _, s := range statuses {
		icon := "\033[31m✗\033[0m"
		if s.Connected {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s", icon, s.Platform)
		if s.Details != "" {
			fmt.Printf(" (%s)", s.Details)
		}
		if s.Error != "" {
			fmt.Printf(" \033[31m%s\033[0m", s.Error)
		}
		fmt.Println()
	}
}

func flushCache(server string) {
	req, _ := http.NewRequest(http.MethodDelete, server+"/api/recommendations/cache", nil)
	resp, err := client.Do(req)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		printError("Cache flush failed (%d)", resp.StatusCode)
		return
	}
	fmt.Println("Cache cleared.")
}

func fetchResult(server, query string) {
	resp, err := client.Get(server + "/api/recommendations?q=" + url.QueryEscape(query))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(out.String())
}

func sendMessage(server, user, content string) {
	body, _ := json.Marshal(map[string]string{
		"user_id":   user,
		"user_name": user,
		"content":   content,
	})

	resp, err := client.Post(
		server+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var msg struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	fmt.Println(msg.Content)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
