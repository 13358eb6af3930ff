package wire

import (
	"encoding/json"
	"testing"
)

func TestDecodeObjectFrame(t *testing.T) {
	raw := []byte(`{"op":"new_chat_msg","d":{"msg":{"id":"m1"}}}`)
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Op != OpNewChatMsg {
		t.Fatalf("op = %q, want %q", f.Op, OpNewChatMsg)
	}
	if len(f.D) == 0 {
		t.Fatal("payload missing")
	}
}

func TestDecodeFetchDoneCarriesFetchID(t *testing.T) {
	raw := []byte(`{"op":"fetch_done","d":{"rooms":[]},"fetchId":"abc-123"}`)
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Op != OpFetchDone || f.FetchID != "abc-123" {
		t.Fatalf("got op=%q fetchId=%q", f.Op, f.FetchID)
	}
}

func TestDecodeBareStringFrame(t *testing.T) {
	f, err := Decode([]byte(`"pong"`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Op != Pong {
		t.Fatalf("op = %q, want %q", f.Op, Pong)
	}
	if f.D != nil {
		t.Fatalf("bare string frame should have no payload, got %s", f.D)
	}
}

func TestDecodePlainTextFrame(t *testing.T) {
	f, err := Decode([]byte("pong"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Op != Pong {
		t.Fatalf("op = %q, want %q", f.Op, Pong)
	}
}

func TestDecodeRejectsEmptyAndOpless(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("empty frame should fail")
	}
	if _, err := Decode([]byte(`{"d":{}}`)); err == nil {
		t.Fatal("frame without opcode should fail")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	raw, err := Encode(OpJoinRoom, map[string]string{"roomId": "r1"}, "fid-1")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Op != OpJoinRoom || f.FetchID != "fid-1" {
		t.Fatalf("got op=%q fetchId=%q", f.Op, f.FetchID)
	}
	var d map[string]string
	if err := json.Unmarshal(f.D, &d); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if d["roomId"] != "r1" {
		t.Fatalf("roomId = %q", d["roomId"])
	}
}

func TestEncodeOmitsEmptyFetchID(t *testing.T) {
	raw, err := Encode(OpAskToSpeak, map[string]any{}, "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := probe["fetchId"]; present {
		t.Fatal("fetchId should be omitted when empty")
	}
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("hey @doge check :wave: `code` https://example.com")
	want := []Token{
		{T: TokenText, V: "hey"},
		{T: TokenMention, V: "doge"},
		{T: TokenText, V: "check"},
		{T: TokenEmote, V: "wave"},
		{T: TokenBlock, V: "code"},
		{T: TokenLink, V: "https://example.com"},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d = %+v, want %+v", i, tokens[i], want[i])
		}
	}
}

func TestTokenizeEdgeWords(t *testing.T) {
	// A lone "@" or "::" is plain text, not a mention or emote.
	for _, word := range []string{"@", "::", "`"} {
		tok := tokenizeWord(word)
		if tok.T != TokenText {
			t.Fatalf("%q tokenized as %q, want text", word, tok.T)
		}
	}
}

func TestRenderRoundTrip(t *testing.T) {
	msg := "hello @world :fire: `go` https://example.com end"
	if got := Render(Tokenize(msg)); got != msg {
		t.Fatalf("Render = %q, want %q", got, msg)
	}
}
