package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestUserUpsertPreservesFields(t *testing.T) {
	db := testDB(t)

	u := &User{Email: "alice@example.com", FullName: "Alice Smith", AvatarURL: "https://a/pic.png"}
	if err := db.UpsertUser(u, 1000); err != nil {
		t.Fatal(err)
	}

	// A later heartbeat without profile fields must not blank them.
	if err := db.UpsertUser(&User{Email: "alice@example.com"}, 2000); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetUser("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("user not found")
	}
	if got.FullName != "Alice Smith" {
		t.Errorf("full_name = %q, want Alice Smith", got.FullName)
	}
	if got.LastActive != 2000 {
		t.Errorf("last_active = %d, want 2000", got.LastActive)
	}
}

func TestSearchUsersExcludesCaller(t *testing.T) {
	db := testDB(t)

	for _, u := range []User{
		{Email: "alice@example.com", FullName: "Alice Smith"},
		{Email: "bob@example.com", FullName: "Bob Alison"},
		{Email: "carol@example.com", FullName: "Carol Jones"},
	} {
		if err := db.UpsertUser(&u, 1000); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.SearchUsers("ali", "alice@example.com", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Email != "bob@example.com" {
		t.Errorf("email = %q, want bob", results[0].Email)
	}
}

func TestFriendshipPairUnique(t *testing.T) {
	db := testDB(t)

	if _, err := db.InsertFriendship("a@x", "b@x", 1000); err != nil {
		t.Fatal(err)
	}
	// Same pair in the opposite direction must collide.
	if _, err := db.InsertFriendship("b@x", "a@x", 2000); err != ErrDuplicatePair {
		t.Errorf("err = %v, want ErrDuplicatePair", err)
	}
}

func TestFriendshipAcceptFlow(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertUser(&User{Email: "b@x", FullName: "Bea"}, 0); err != nil {
		t.Fatal(err)
	}
	id, err := db.InsertFriendship("a@x", "b@x", 1000)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := db.AreFriends("a@x", "b@x")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("pending friendship should not count as friends")
	}

	pending, err := db.ListPendingRequests("b@x")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Email != "a@x" {
		t.Fatalf("pending = %+v, want one request from a@x", pending)
	}

	if err := db.AcceptFriendship(id, 2000); err != nil {
		t.Fatal(err)
	}
	ok, err = db.AreFriends("b@x", "a@x")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("accepted friendship should be symmetric")
	}

	friends, err := db.ListFriends("a@x")
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 1 || friends[0].FullName != "Bea" {
		t.Fatalf("friends = %+v, want Bea", friends)
	}
}

func TestConversationPairUnique(t *testing.T) {
	db := testDB(t)

	c := &Conversation{User1Email: "a@x", User2Email: "b@x", CreatedAt: 1000, LastMessageAt: 1000, User1Accepted: true}
	if _, err := db.InsertConversation(c); err != nil {
		t.Fatal(err)
	}
	rev := &Conversation{User1Email: "b@x", User2Email: "a@x", CreatedAt: 2000, LastMessageAt: 2000, User1Accepted: true}
	if _, err := db.InsertConversation(rev); err != ErrDuplicatePair {
		t.Errorf("err = %v, want ErrDuplicatePair", err)
	}

	got, err := db.GetConversationByPair("b@x", "a@x")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.CreatedAt != 1000 {
		t.Errorf("lookup by reversed pair got %+v, want the original row", got)
	}
}

func TestMarkConversationReadMonotonic(t *testing.T) {
	db := testDB(t)

	id, err := db.InsertConversation(&Conversation{User1Email: "a@x", User2Email: "b@x", CreatedAt: 1, LastMessageAt: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.MarkConversationRead(id, "a@x", 5000); err != nil {
		t.Fatal(err)
	}
	// A stale write must not move the watermark backwards.
	if err := db.MarkConversationRead(id, "a@x", 3000); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetConversation(id)
	if err != nil {
		t.Fatal(err)
	}
	if c.User1LastReadAt != 5000 {
		t.Errorf("user1_last_read_at = %d, want 5000", c.User1LastReadAt)
	}
	if c.User2LastReadAt != 0 {
		t.Errorf("user2_last_read_at = %d, want 0 (untouched)", c.User2LastReadAt)
	}
}

func TestEditMessageSnapshotsOriginalOnce(t *testing.T) {
	db := testDB(t)

	conv, err := db.InsertConversation(&Conversation{User1Email: "a@x", User2Email: "b@x", CreatedAt: 1, LastMessageAt: 1})
	if err != nil {
		t.Fatal(err)
	}
	id, err := db.InsertMessage(&Message{ConversationID: conv, SenderEmail: "a@x", Body: "first", CreatedAt: 1000})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.EditMessage(id, "second"); err != nil {
		t.Fatal(err)
	}
	if err := db.EditMessage(id, "third"); err != nil {
		t.Fatal(err)
	}

	m, err := db.GetMessage(id)
	if err != nil {
		t.Fatal(err)
	}
	if m.Body != "third" {
		t.Errorf("body = %q, want third", m.Body)
	}
	if m.OriginalBody != "first" {
		t.Errorf("original_body = %q, want first (first-edit snapshot)", m.OriginalBody)
	}
	if !m.IsEdited {
		t.Error("is_edited should be set")
	}
}

func TestUnsendBlanksProjection(t *testing.T) {
	db := testDB(t)

	conv, err := db.InsertConversation(&Conversation{User1Email: "a@x", User2Email: "b@x", CreatedAt: 1, LastMessageAt: 1})
	if err != nil {
		t.Fatal(err)
	}
	id, err := db.InsertMessage(&Message{ConversationID: conv, SenderEmail: "a@x", Body: "secret", Images: []string{"img1"}, CreatedAt: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UnsendMessage(id); err != nil {
		t.Fatal(err)
	}

	views, err := db.ListMessages(conv, 0, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d messages, want 1 (row must survive unsend)", len(views))
	}
	if !views[0].IsDeleted {
		t.Error("is_deleted should be set")
	}
	if views[0].Body != "" || len(views[0].Images) != 0 {
		t.Errorf("content not blanked: body=%q images=%v", views[0].Body, views[0].Images)
	}
}

func TestListMessagesPagingAndReplies(t *testing.T) {
	db := testDB(t)

	conv, err := db.InsertConversation(&Conversation{User1Email: "a@x", User2Email: "b@x", CreatedAt: 1, LastMessageAt: 1})
	if err != nil {
		t.Fatal(err)
	}
	var first int64
	for i := 0; i < 5; i++ {
		m := &Message{ConversationID: conv, SenderEmail: "a@x", Body: "m", CreatedAt: int64(1000 + i)}
		if i == 4 {
			m.ReplyToID = first
		}
		id, err := db.InsertMessage(m)
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			first = id
		}
	}

	views, err := db.ListMessages(conv, 0, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 3 {
		t.Fatalf("got %d messages, want 3", len(views))
	}
	// Tail page, chronological order.
	if views[0].CreatedAt != 1002 || views[2].CreatedAt != 1004 {
		t.Errorf("page = [%d..%d], want [1002..1004]", views[0].CreatedAt, views[2].CreatedAt)
	}
	if views[2].ReplyTo == nil || views[2].ReplyTo.ID != first {
		t.Errorf("reply target not resolved: %+v", views[2].ReplyTo)
	}

	older, err := db.ListMessages(conv, views[0].ID, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 2 || older[1].CreatedAt != 1001 {
		t.Errorf("older page wrong: %+v", older)
	}
}

func TestToggleReaction(t *testing.T) {
	db := testDB(t)

	conv, err := db.InsertConversation(&Conversation{User1Email: "a@x", User2Email: "b@x", CreatedAt: 1, LastMessageAt: 1})
	if err != nil {
		t.Fatal(err)
	}
	id, err := db.InsertMessage(&Message{ConversationID: conv, SenderEmail: "a@x", Body: "hi", CreatedAt: 1000})
	if err != nil {
		t.Fatal(err)
	}

	set, err := db.ToggleReaction(id, "b@x", "👍", 2000)
	if err != nil {
		t.Fatal(err)
	}
	if !set {
		t.Error("first toggle should set the reaction")
	}
	// A different emoji from the same user coexists.
	if _, err := db.ToggleReaction(id, "b@x", "❤️", 2001); err != nil {
		t.Fatal(err)
	}
	set, err = db.ToggleReaction(id, "b@x", "👍", 2002)
	if err != nil {
		t.Fatal(err)
	}
	if set {
		t.Error("second toggle should remove the reaction")
	}

	views, err := db.ListMessages(conv, 0, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(views[0].Reactions) != 1 || views[0].Reactions[0].Emoji != "❤️" {
		t.Errorf("reactions = %+v, want only ❤️", views[0].Reactions)
	}
}

func TestReactionOrderStable(t *testing.T) {
	db := testDB(t)

	conv, err := db.InsertConversation(&Conversation{User1Email: "a@x", User2Email: "b@x", CreatedAt: 1, LastMessageAt: 1})
	if err != nil {
		t.Fatal(err)
	}
	id, err := db.InsertMessage(&Message{ConversationID: conv, SenderEmail: "a@x", Body: "hi", CreatedAt: 1000})
	if err != nil {
		t.Fatal(err)
	}

	// Two reactions land on the same millisecond; insertion order must
	// still decide the tie.
	if _, err := db.ToggleReaction(id, "b@x", "👍", 2000); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ToggleReaction(id, "a@x", "👍", 2000); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ToggleReaction(id, "b@x", "❤️", 2001); err != nil {
		t.Fatal(err)
	}

	views, err := db.ListMessages(conv, 0, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := views[0].Reactions
	if len(got) != 3 {
		t.Fatalf("got %d reactions, want 3", len(got))
	}
	want := []Reaction{{"b@x", "👍"}, {"a@x", "👍"}, {"b@x", "❤️"}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reaction[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMessageRequestNotificationDedup(t *testing.T) {
	db := testDB(t)

	n := &Notification{RecipientEmail: "b@x", SenderEmail: "a@x", Type: NotificationMessageRequest, Message: "wants to chat", CreatedAt: 1000}
	id, err := db.InsertNotification(n)
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("first insert should create a row")
	}

	// Repeat sends before the request is handled are dropped.
	for i := 0; i < 4; i++ {
		dup, err := db.InsertNotification(n)
		if err != nil {
			t.Fatal(err)
		}
		if dup != 0 {
			t.Errorf("duplicate open request created row %d", dup)
		}
	}

	count, err := db.UnreadNotificationCount("b@x")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("unread = %d, want 1", count)
	}

	// Once handled, a fresh request may be filed again.
	if err := db.MarkNotificationRead(id); err != nil {
		t.Fatal(err)
	}
	again, err := db.InsertNotification(n)
	if err != nil {
		t.Fatal(err)
	}
	if again == 0 {
		t.Error("request after read should create a new row")
	}
}

func TestListConversationsPreview(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertUser(&User{Email: "b@x", FullName: "Bea"}, 9000); err != nil {
		t.Fatal(err)
	}
	conv, err := db.InsertConversation(&Conversation{User1Email: "a@x", User2Email: "b@x", CreatedAt: 1, LastMessageAt: 1, User1Accepted: true})
	if err != nil {
		t.Fatal(err)
	}

	list, err := db.ListConversations("a@x", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].LastMessage != "No messages yet" {
		t.Fatalf("empty conversation preview = %+v", list)
	}

	mid, err := db.InsertMessage(&Message{ConversationID: conv, SenderEmail: "b@x", Body: "hello there", CreatedAt: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.TouchConversation(conv, 2000); err != nil {
		t.Fatal(err)
	}

	list, err = db.ListConversations("a@x", 50)
	if err != nil {
		t.Fatal(err)
	}
	s := list[0]
	if s.LastMessage != "hello there" {
		t.Errorf("preview = %q, want hello there", s.LastMessage)
	}
	if s.OtherName != "Bea" || s.OtherEmail != "b@x" {
		t.Errorf("counterparty = %q/%q, want Bea/b@x", s.OtherName, s.OtherEmail)
	}
	if s.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", s.UnreadCount)
	}

	// Unsent messages show a neutral preview to the other side.
	if err := db.UnsendMessage(mid); err != nil {
		t.Fatal(err)
	}
	list, err = db.ListConversations("a@x", 50)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].LastMessage != "Message unsent" {
		t.Errorf("preview = %q, want Message unsent", list[0].LastMessage)
	}
	if list[0].UnreadCount != 0 {
		t.Errorf("unread = %d, want 0 after unsend", list[0].UnreadCount)
	}
	list, err = db.ListConversations("b@x", 50)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].LastMessage != "You unsent a message" {
		t.Errorf("sender preview = %q, want You unsent a message", list[0].LastMessage)
	}
}

func TestTypingUpsert(t *testing.T) {
	db := testDB(t)

	if err := db.SetTyping(1, "a@x", true, 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.SetTyping(1, "a@x", true, 2000); err != nil {
		t.Fatal(err)
	}
	at, err := db.TypingUpdatedAt(1, "a@x")
	if err != nil {
		t.Fatal(err)
	}
	if at != 2000 {
		t.Errorf("updated_at = %d, want 2000", at)
	}

	if err := db.SetTyping(1, "a@x", false, 3000); err != nil {
		t.Fatal(err)
	}
	at, err = db.TypingUpdatedAt(1, "a@x")
	if err != nil {
		t.Fatal(err)
	}
	if at != 0 {
		t.Errorf("updated_at = %d after clear, want 0", at)
	}
}

func TestSignalMailbox(t *testing.T) {
	db := testDB(t)

	for i, typ := range []string{"call-request", "offer", "candidate"} {
		_, err := db.InsertSignal(&CallSignal{ConversationID: 7, FromEmail: "a@x", ToEmail: "b@x", Type: typ, Signal: "{}", CreatedAt: int64(1000 + i)})
		if err != nil {
			t.Fatal(err)
		}
	}
	// Traffic for another recipient stays out of the mailbox.
	if _, err := db.InsertSignal(&CallSignal{ConversationID: 7, FromEmail: "b@x", ToEmail: "a@x", Type: "answer", CreatedAt: 1010}); err != nil {
		t.Fatal(err)
	}

	pending, err := db.ListPendingSignals(7, "b@x")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}
	if pending[0].Type != "candidate" {
		t.Errorf("first = %q, want newest (candidate)", pending[0].Type)
	}

	if err := db.DeleteSignal(pending[0].ID); err != nil {
		t.Fatal(err)
	}
	pending, err = db.ListPendingSignals(7, "b@x")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("got %d pending after delete, want 2", len(pending))
	}

	// Teardown clears only the recipient's own inbox.
	n, err := db.DeleteConversationSignals(7, "b@x")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("cleared %d rows, want 2", n)
	}
	other, err := db.ListPendingSignals(7, "a@x")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 1 {
		t.Errorf("counterparty inbox = %d entries, want 1 untouched", len(other))
	}
}
