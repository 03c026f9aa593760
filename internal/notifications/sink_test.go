package notifications

import (
	"bytes"
	"context"
	"testing"

	"github.com/angelmondragon/bakeshop-backend/pkg/enums"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

func TestLogSinkWritesLevelAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewLogSink(logger.New(logger.Options{ServiceName: "test", Output: buf}))

	n := Failure("minimum quantity is 6 units")
	n.CartID = "cart-1"
	sink.Notify(context.Background(), n)

	out := buf.String()
	for _, want := range []string{`"notification_level":"failure"`, `"cart_id":"cart-1"`, "minimum quantity is 6 units"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestBuilders(t *testing.T) {
	if Success("ok").Level != enums.NotificationLevelSuccess {
		t.Fatal("expected success level")
	}
	if Failure("no").Level != enums.NotificationLevelFailure {
		t.Fatal("expected failure level")
	}
}

func TestNilSinksAreSafe(t *testing.T) {
	var sink *LogSink
	sink.Notify(context.Background(), Success("ignored"))
	NopSink{}.Notify(context.Background(), Success("ignored"))
}
