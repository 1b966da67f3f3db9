package lib

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// Prompt reads one line from stdin. Sensitive input (passcodes,
// recovery codes) is read without echo.
func Prompt(prompt string, sensitive bool) (string, error) {
	fmt.Fprintf(os.Stdout, "%s: ", prompt)
	defer fmt.Fprintf(os.Stdout, "\n")

	if sensitive {
		input, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(input)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}
