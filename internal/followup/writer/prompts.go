package writer

import (
	"errors"
	"fmt"
	"strings"
)

const systemPrompt = `You write follow-up messages for B2B sales outreach sequences.

Rules:
- Write like a person, not a campaign. No marketing phrases, no exclamation marks, no "just checking in".
- Match the requested tone. A breakup message closes the loop politely and asks nothing further.
- LinkedIn messages: at most 3 short sentences, no subject line.
- Email messages: at most 5 short sentences, plus a subject line of at most 6 words.
- Never repeat phrasing from the earlier messages you are shown.
- Refer to the prospect's situation only through the facts provided. Do not invent details.

Respond in exactly this format:
SUBJECT: <subject line, or NONE for LinkedIn>
MESSAGE:
<the message>
REASONING:
<one or two sentences on the approach taken>`

func buildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Prospect: %s", req.FullName)
	if req.Headline != "" {
		fmt.Fprintf(&b, ", %s", req.Headline)
	}
	if req.Company != "" {
		fmt.Fprintf(&b, " at %s", req.Company)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Channel: %s\n", req.Channel)
	fmt.Fprintf(&b, "Scenario: %s\n", req.Scenario)
	fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	fmt.Fprintf(&b, "Touch number: %d\n", req.TouchNumber)
	fmt.Fprintf(&b, "Days since last contact: %d\n", req.DaysSinceLastContact)

	if len(req.PriorMessages) > 0 {
		b.WriteString("\nEarlier messages in this sequence (do not repeat their phrasing):\n")
		for i, msg := range req.PriorMessages {
			fmt.Fprintf(&b, "%d. %s\n", i+1, msg)
		}
	}

	b.WriteString("\nWrite the next follow-up message.")
	return b.String()
}

// parseOutput splits the model's labeled sections. A missing MESSAGE
// section is an error; missing reasoning is tolerated.
func parseOutput(raw string) (Result, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{}, errors.New("writer returned empty output")
	}

	var result Result

	if idx := strings.Index(text, "REASONING:"); idx >= 0 {
		result.Reasoning = strings.TrimSpace(text[idx+len("REASONING:"):])
		text = strings.TrimSpace(text[:idx])
	}

	msgIdx := strings.Index(text, "MESSAGE:")
	if msgIdx < 0 {
		// Model skipped the scaffold; treat the whole output as the message.
		result.Text = text
		return result, nil
	}

	header := text[:msgIdx]
	result.Text = strings.TrimSpace(text[msgIdx+len("MESSAGE:"):])

	if subjIdx := strings.Index(header, "SUBJECT:"); subjIdx >= 0 {
		subject := strings.TrimSpace(header[subjIdx+len("SUBJECT:"):])
		subject = strings.TrimSpace(strings.Split(subject, "\n")[0])
		if !strings.EqualFold(subject, "NONE") {
			result.Subject = subject
		}
	}

	if result.Text == "" {
		return Result{}, errors.New("writer output had an empty MESSAGE section")
	}
	return result, nil
}
