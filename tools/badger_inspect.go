// Command badger_inspect dumps chat-relay's BadgerDB contents for
// debugging: messages, conversations or users depending on the prefix.
// Opens the database read-only so it can run next to a live server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain"
)

func main() {
	dbPath := flag.String("db", "/tmp/chat-relay", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, conv:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Entity", "Timestamp", "Detail", "State"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Index entries carry no payload worth printing
			if strings.HasPrefix(key, "convuser:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(toRow(key, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	// BypassLockGuard allows opening while the server holds the lock
	options := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	return badger.Open(options)
}

func toRow(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var message domain.Message
		if err := json.Unmarshal(value, &message); err != nil {
			return rawRow(key, value)
		}
		return []string{
			shorten(key),
			"MESSAGE",
			message.CreatedAt.Format(time.RFC3339),
			fmt.Sprintf("%s: %s", message.SenderID, shortenText(message.Content)),
			fmt.Sprintf("read by %d", len(message.ReadBy)),
		}
	case strings.HasPrefix(key, "conv:"):
		var conversation domain.Conversation
		if err := json.Unmarshal(value, &conversation); err != nil {
			return rawRow(key, value)
		}
		kind := "direct"
		if conversation.IsGroup {
			kind = color.Cyan.Sprintf("group %q", conversation.Name)
		}
		return []string{
			shorten(key),
			"CONVERSATION",
			conversation.UpdatedAt.Format(time.RFC3339),
			fmt.Sprintf("%d participants", len(conversation.ParticipantIDs)),
			kind,
		}
	case strings.HasPrefix(key, "user:"):
		var user domain.User
		if err := json.Unmarshal(value, &user); err != nil {
			return rawRow(key, value)
		}
		state := color.Gray.Sprint("offline")
		if user.IsOnline {
			state = color.Green.Sprint("online")
		}
		return []string{
			shorten(key),
			"USER",
			user.LastSeen.Format(time.RFC3339),
			user.Name,
			state,
		}
	default:
		return rawRow(key, value)
	}
}

func rawRow(key string, value []byte) []string {
	return []string{shorten(key), "RAW", "--", fmt.Sprintf("%d bytes", len(value)), "-"}
}

func shorten(key string) string {
	if len(key) > 48 {
		return key[:45] + "..."
	}
	return key
}

func shortenText(s string) string {
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
