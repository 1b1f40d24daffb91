package reminder

import (
	"context"
	"fmt"
)

// Subject is the subject line of every reminder
const Subject = "Library Reminder: Please Return Book"

// Message is one outgoing reminder
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a reminder message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Compose builds the reminder for a student holding a book
func Compose(email, studentName, bookTitle, dueDate string) Message {
	return Message{
		To:      email,
		Subject: Subject,
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"This is a reminder to return the book:\n\n"+
			"Book: %s\n"+
			"Due Date: %s\n\n"+
			"Thank you,\nLibrary Admin", studentName, bookTitle, dueDate),
	}
}
