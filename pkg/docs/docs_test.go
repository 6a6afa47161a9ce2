package docs

import (
	"strings"
	"testing"
	"time"
)

func TestMarshalRoundtrip(t *testing.T) {
	post := &Post{
		Layout:     "post",
		Title:      "Gouge command reference",
		Date:       time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Categories: []string{"gouge"},
		Body:       "# Commands\n\nSome text.\n",
	}

	out, err := post.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.HasPrefix(s, "---\n") {
		t.Errorf("output does not start with a front matter marker: %q", s)
	}
	for _, want := range []string{"layout: post", "title: Gouge command reference", "- gouge"} {
		if !strings.Contains(s, want) {
			t.Errorf("front matter does not contain %q:\n%s", want, s)
		}
	}
	if !strings.HasSuffix(s, "# Commands\n\nSome text.\n") {
		t.Errorf("body not preserved:\n%s", s)
	}

	back, err := ParsePost(out)
	if err != nil {
		t.Fatal(err)
	}
	if back.Layout != post.Layout || back.Title != post.Title {
		t.Errorf("roundtrip changed the header: %+v", back)
	}
	if !back.Date.Equal(post.Date) {
		t.Errorf("roundtrip changed the date: %v", back.Date)
	}
	if len(back.Categories) != 1 || back.Categories[0] != "gouge" {
		t.Errorf("roundtrip changed the categories: %v", back.Categories)
	}
	if back.Body != strings.TrimSpace(post.Body) {
		t.Errorf("roundtrip changed the body: %q", back.Body)
	}
}

func TestParsePostTOML(t *testing.T) {
	doc := `+++
layout = "post"
title = "gouge 1.4 released"
date = 2026-03-14T15:09:26Z
categories = ["gouge", "release"]
+++

The payload terminal learned new tricks.`

	post, err := ParsePost([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if post.Layout != "post" || post.Title != "gouge 1.4 released" {
		t.Errorf("wrong header: %+v", post)
	}
	if post.Date.Year() != 2026 || post.Date.Month() != time.March {
		t.Errorf("wrong date: %v", post.Date)
	}
	if len(post.Categories) != 2 || post.Categories[1] != "release" {
		t.Errorf("wrong categories: %v", post.Categories)
	}
	if post.Body != "The payload terminal learned new tricks." {
		t.Errorf("wrong body: %q", post.Body)
	}
}

func TestParsePostNoFrontMatter(t *testing.T) {
	if _, err := ParsePost([]byte("just some markdown")); err == nil {
		t.Error("expected an error for a document without front matter")
	}
}
