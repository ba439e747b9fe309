package mail

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emotionlab/go-enrollment"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Message{To: to, Subject: subject, Body: body})
	return r.err
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.queue) == 0 {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestQueueSenderPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	q := newQueueSender(w)

	require.NoError(t, q.Send(context.Background(), "student@college.edu", "Password reset code", "Your code is 123456"))
	require.Len(t, w.msgs, 1)

	assert.Equal(t, "student@college.edu", string(w.msgs[0].Key))

	var m Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &m))
	assert.Equal(t, "Password reset code", m.Subject)
	assert.Equal(t, "Your code is 123456", m.Body)
}

func TestQueueSenderWrapsWriteErrors(t *testing.T) {
	q := newQueueSender(&fakeWriter{err: errors.New("broker down")})
	require.Error(t, q.Send(context.Background(), "a@b.c", "s", "b"))
}

func TestActivitySinkKeysByAccount(t *testing.T) {
	w := &fakeWriter{}
	sink := &ActivitySink{writer: w}

	event := enrollment.ActivityEvent{
		EventType:  enrollment.ActivityEventAccountApproved,
		AccountID:  "acc-1",
		OccurredAt: time.Now(),
	}
	require.NoError(t, sink.Record(context.Background(), event))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "acc-1", string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"verb":"account.approved"`)
	assert.Contains(t, string(w.msgs[0].Value), `"channel":"enrollment"`)
}

func TestConsumerDeliversAndCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good, _ := json.Marshal(Message{To: "a@college.edu", Subject: "hi", Body: "there"})
	reader := &fakeReader{
		queue: []kafka.Message{
			{Offset: 1, Value: good},
			{Offset: 2, Value: []byte("{not json")},
		},
		cancel: cancel,
	}
	sender := &recordingSender{}

	c := newConsumer(reader, sender, nil)
	require.NoError(t, c.Run(ctx))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@college.edu", sender.sent[0].To)
	assert.Len(t, reader.committed, 2)
}

func TestConsumerCommitsFailedDeliveries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good, _ := json.Marshal(Message{To: "a@college.edu", Subject: "hi", Body: "there"})
	reader := &fakeReader{queue: []kafka.Message{{Value: good}}, cancel: cancel}

	c := newConsumer(reader, &recordingSender{err: errors.New("550 mailbox unavailable")}, nil)
	require.NoError(t, c.Run(ctx))
	assert.Len(t, reader.committed, 1)
}

func TestThrottledSender(t *testing.T) {
	next := &recordingSender{}

	unlimited := NewThrottledSender(next, 0)
	for range 3 {
		require.NoError(t, unlimited.Send(context.Background(), "a@b.c", "s", "b"))
	}
	assert.Len(t, next.sent, 3)

	slow := NewThrottledSender(next, 1)
	require.NoError(t, slow.Send(context.Background(), "a@b.c", "s", "b"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := slow.Send(ctx, "a@b.c", "s", "b")
	require.Error(t, err)
	assert.Len(t, next.sent, 4)
}

func TestBuildMessage(t *testing.T) {
	raw := string(buildMessage(formatAddress("Enrollment", "noreply@college.edu"), "a@college.edu", "Code", "123456"))

	assert.True(t, strings.HasPrefix(raw, "From: Enrollment <noreply@college.edu>\r\n"))
	assert.Contains(t, raw, "To: a@college.edu\r\n")
	assert.Contains(t, raw, "Subject: Code\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n123456"))
	assert.Equal(t, "plain@college.edu", formatAddress(" ", "plain@college.edu"))
}

// fakeSMTPServer accepts one session without STARTTLS or AUTH and records
// the DATA payload.
func fakeSMTPServer(t *testing.T) (addr string, data <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		write("220 fake ESMTP")
		var body strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")

			if inData {
				if line == "." {
					inData = false
					out <- body.String()
					write("250 queued")
					continue
				}
				body.WriteString(line + "\n")
				continue
			}

			switch {
			case strings.HasPrefix(line, "EHLO"):
				write("250-fake")
				write("250 8BITMIME")
			case strings.HasPrefix(line, "MAIL FROM"), strings.HasPrefix(line, "RCPT TO"):
				write("250 ok")
			case line == "DATA":
				inData = true
				write("354 go ahead")
			case line == "QUIT":
				write("221 bye")
				return
			default:
				write("250 ok")
			}
		}
	}()

	return ln.Addr().String(), out
}

func TestSMTPSenderDelivers(t *testing.T) {
	addr, data := fakeSMTPServer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	var p int
	_, err = fmt.Sscan(port, &p)
	require.NoError(t, err)

	sender := NewSMTPSender(SMTPOptions{Host: host, Port: p, From: "noreply@college.edu", FromName: "Enrollment"})
	require.NoError(t, sender.Send(context.Background(), "a@college.edu", "Password reset code", "Your code is 123456"))

	select {
	case body := <-data:
		assert.Contains(t, body, "Subject: Password reset code")
		assert.Contains(t, body, "Your code is 123456")
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestSMTPSenderDialFailure(t *testing.T) {
	sender := NewSMTPSender(SMTPOptions{Host: "127.0.0.1", Port: 1, From: "noreply@college.edu"})
	require.Error(t, sender.Send(context.Background(), "a@college.edu", "s", "b"))
}
