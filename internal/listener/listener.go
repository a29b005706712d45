// Package listener owns the operator console. Mission events arrive
// asynchronously while the operator types, so every print goes through the
// readline instance to keep the prompt intact.
package listener

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

var (
	rl *readline.Instance
	mu sync.Mutex
)

func Init() error {
	var err error
	rl, err = readline.NewEx(&readline.Config{
		Prompt:          "pilot> ",
		InterruptPrompt: "",
		EOFPrompt:       "",
	})
	return err
}

func Close() {
	if rl != nil {
		_ = rl.Close()
	}
}

// GetInput blocks for one operator line. An empty string means EOF or
// interrupt; the caller treats both as an exit request.
func GetInput() string {
	if rl == nil {
		return ""
	}
	line, err := rl.Readline()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// AsyncPrintln prints a line above the prompt without clobbering whatever the
// operator has typed so far.
func AsyncPrintln(s string) {
	mu.Lock()
	defer mu.Unlock()
	if rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = rl.Write([]byte("\r\n" + s + "\r\n"))
	rl.Refresh()
}

// AskYesNo blocks for a y/n answer, reprompting on anything else.
func AskYesNo(question string) bool {
	AsyncPrintln(question + " [y/n]")
	for {
		ans := strings.ToLower(GetInput())
		switch ans {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		AsyncPrintln("Please answer y/n.")
	}
}
