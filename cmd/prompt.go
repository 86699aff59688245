package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/validation"
)

const promptText = "Enter the target domain: "

// promptDomain asks for the target on out and reads one line from in.
func promptDomain(in io.Reader, out io.Writer) (*validation.Target, error) {
	fmt.Fprint(out, promptText)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read domain: %w", err)
	}

	return validation.ParseTarget(line)
}
