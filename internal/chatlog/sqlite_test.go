package chatlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteSink_RecentReturnsNewestInOrder(t *testing.T) {
	req := require.New(t)
	sink, err := NewSQLiteSink(":memory:")
	req.NoError(err)
	defer sink.Close()

	ctx := context.Background()
	at := time.Now().UTC()
	for i, text := range []string{"one", "two", "three"} {
		e := NewEntry("tech", text)
		e.At = at.Add(time.Duration(i) * time.Second)
		req.NoError(sink.Append(ctx, e))
	}
	req.NoError(sink.Append(ctx, NewEntry("lobby", "elsewhere")))

	entries, err := sink.Recent(ctx, "tech", 2)
	req.NoError(err)
	req.Len(entries, 2)
	req.Equal("two", entries[0].Text)
	req.Equal("three", entries[1].Text)
	req.Equal("tech", entries[1].Room)

	entries, err = sink.Recent(ctx, "ghost", 10)
	req.NoError(err)
	req.Empty(entries)
}
