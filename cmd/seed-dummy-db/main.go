package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/repository"
)

func main() {
	// Default to a dummy database in the current directory
	dbPath := "dummy_callchat.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	callID := "demo-call"
	if len(os.Args) > 2 {
		callID = os.Args[2]
	}

	fmt.Printf("Using database at: %s\n", dbPath)

	db, err := repository.OpenDatabase(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	conv := seedConversation(callID, rand.New(rand.NewSource(time.Now().UnixNano())), time.Now())
	if err := repo.Save(ctx, conv); err != nil {
		log.Fatalf("Failed to seed conversation: %v", err)
	}

	fmt.Printf("Seeded %d messages (%d unread) into call %s\n", len(conv.Messages), conv.UnreadCount, callID)
	fmt.Printf("Database location: %s\n", dbPath)
}

// seedConversation builds a demo chat between a few participants. The last
// few messages from other participants are left unread.
func seedConversation(callID string, rng *rand.Rand, now time.Time) *domain.Conversation {
	participants := []domain.LocalUser{
		{ID: "alice", Name: "Alice Johnson"},
		{ID: "bob", Name: "Bob Smith"},
		{ID: "charlie", Name: "Charlie Brown"},
		{ID: "diana", Name: "Diana Prince"},
	}

	sampleTexts := []string{
		"Can everyone hear me?",
		"Sharing my screen now",
		"Let me pull up the doc",
		"Sorry, I was on mute",
		"Can you drop the link here?",
		"Thanks, got it!",
		"Let's take this offline",
		"I'll send the notes after the call",
		"Agreed 👍",
		"One sec, my connection is flaky",
		"Next item on the agenda?",
		"Great point",
	}

	conv := domain.NewConversation(callID)
	numMessages := 10 + rng.Intn(6)
	start := now.Add(-time.Duration(numMessages) * time.Minute)

	for i := 0; i < numMessages; i++ {
		sender := participants[rng.Intn(len(participants))]
		sentAt := start.Add(time.Duration(i)*time.Minute + time.Duration(rng.Intn(50))*time.Second)
		conv.Append(domain.NewChatMessage(uuid.NewString(), sender, sampleTexts[rng.Intn(len(sampleTexts))], sentAt))
	}

	conv.UnreadCount = rng.Intn(4)
	if conv.UnreadCount == 0 {
		conv.MarkRead(now)
	}
	return conv
}
