package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAuthor(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"By Jane Doe | 2024-01-02 10:30", "Jane Doe"},
		{"作者：张三 2024年1月2日", "张三"},
		{"<span>Author: <b>Carol</b></span>", "Carol"},
		{"  Written by   Sam  ", "Sam"},
		{"X", ""},
		{"https://example.test/profile", ""},
		{"This byline is far too long to plausibly be the name of a single person or desk", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanAuthor(tt.raw))
		})
	}
}

func TestAuthorStrategies(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "meta tag",
			html: `<html><head><meta name="author" content="Alice Smith"></head><body><div class="byline">By Bob</div></body></html>`,
			want: "Alice Smith",
		},
		{
			name: "byline element",
			html: `<html><body><div class="byline">By Bob Jones | 2024-02-03</div></body></html>`,
			want: "Bob Jones",
		},
		{
			name: "title attribute",
			html: `<html><body><a href="/u/1" title="Author: Carol King">profile</a></body></html>`,
			want: "Carol King",
		},
		{
			name: "title attribute by",
			html: `<html><body><span title="by Dan Brown">icon</span></body></html>`,
			want: "Dan Brown",
		},
		{
			name: "free text chinese",
			html: `<html><body><p>一些介绍。作者：王小明 2024年1月2日</p></body></html>`,
			want: "王小明",
		},
		{
			name: "free text english",
			html: `<html><body><p>A Story By Erin Hunt about nothing in particular</p></body></html>`,
			want: "Erin Hunt",
		},
		{
			name: "near title",
			html: `<html><body><div><h1>Title</h1><span>posted by frank ocean</span></div></body></html>`,
			want: "frank ocean",
		},
		{
			name: "none",
			html: `<html><body><h1>Title</h1><p>No byline here at all.</p></body></html>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Author(mustDoc(t, tt.html)))
		})
	}
}
