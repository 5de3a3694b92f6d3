package evaluator

import "testing"

func TestDecodeModelJSONPlainObject(t *testing.T) {
	var payload responsePayload
	if err := decodeModelJSON(`{"score": 75, "strengths": ["a"]}`, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Score == nil || payload.Score.String() != "75" {
		t.Fatalf("unexpected score %v", payload.Score)
	}
}

func TestDecodeModelJSONFenced(t *testing.T) {
	content := "```json\n{\"score\": 60, \"improvements\": [\"x\"]}\n```"
	var payload responsePayload
	if err := decodeModelJSON(content, &payload); err != nil {
		t.Fatalf("decode fenced: %v", err)
	}
	if payload.Score == nil || payload.Score.String() != "60" {
		t.Fatalf("unexpected score %v", payload.Score)
	}
	if len(payload.Improvements) != 1 {
		t.Fatalf("improvements lost: %v", payload.Improvements)
	}
}

func TestDecodeModelJSONWrappedInProse(t *testing.T) {
	content := `Here is the evaluation you asked for: {"score": 88} Hope this helps!`
	var payload responsePayload
	if err := decodeModelJSON(content, &payload); err != nil {
		t.Fatalf("decode wrapped: %v", err)
	}
	if payload.Score == nil || payload.Score.String() != "88" {
		t.Fatalf("unexpected score %v", payload.Score)
	}
}

func TestDecodeModelJSONRejectsGarbage(t *testing.T) {
	var payload responsePayload
	if err := decodeModelJSON("I could not evaluate this call.", &payload); err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
	if err := decodeModelJSON("", &payload); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestPayloadSnippetTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "0123456789"
	}
	snippet := payloadSnippet(long)
	if len(snippet) != 163 {
		t.Fatalf("snippet length %d", len(snippet))
	}
	if snippet[len(snippet)-3:] != "..." {
		t.Fatalf("snippet not marked truncated: %q", snippet[len(snippet)-10:])
	}
}
