package curator

import "testing"

func TestExtractFirstJSONObject_PlainObject(t *testing.T) {
	obj, ok := ExtractFirstJSONObject(`{"songs": []}`)
	if !ok || obj != `{"songs": []}` {
		t.Fatalf("got %q, %v", obj, ok)
	}
}

func TestExtractFirstJSONObject_JSONFence(t *testing.T) {
	text := "Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps!"
	obj, ok := ExtractFirstJSONObject(text)
	if !ok || obj != `{"a": 1}` {
		t.Fatalf("got %q, %v", obj, ok)
	}
}

func TestExtractFirstJSONObject_PlainFence(t *testing.T) {
	text := "```\n{\"a\": 1}\n```"
	obj, ok := ExtractFirstJSONObject(text)
	if !ok || obj != `{"a": 1}` {
		t.Fatalf("got %q, %v", obj, ok)
	}
}

func TestExtractFirstJSONObject_NestedBracesAndStrings(t *testing.T) {
	text := `prose before {"a": {"b": "}still a string{"}, "c": [1,2]} prose after`
	obj, ok := ExtractFirstJSONObject(text)
	if !ok {
		t.Fatal("expected to find an object")
	}
	want := `{"a": {"b": "}still a string{"}, "c": [1,2]}`
	if obj != want {
		t.Fatalf("got %q want %q", obj, want)
	}
}

func TestExtractFirstJSONObject_EscapedQuoteInString(t *testing.T) {
	text := `{"msg": "she said \"hi\""}`
	obj, ok := ExtractFirstJSONObject(text)
	if !ok || obj != text {
		t.Fatalf("got %q, %v", obj, ok)
	}
}

func TestExtractFirstJSONObject_NoObject(t *testing.T) {
	if _, ok := ExtractFirstJSONObject("no json here at all"); ok {
		t.Fatal("expected no match")
	}
}

func TestExtractFirstJSONObject_Idempotent(t *testing.T) {
	text := "```json\n{\"x\": [1, 2, {\"y\": 3}]}\n```"
	first, ok1 := ExtractFirstJSONObject(text)
	second, ok2 := ExtractFirstJSONObject(first)
	if !ok1 || !ok2 || first != second {
		t.Fatalf("not idempotent: %q (%v) vs %q (%v)", first, ok1, second, ok2)
	}
}
