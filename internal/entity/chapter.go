package entity

// ChapterReference is one resolved unit of content. Title is nil when the
// site does not expose it until the chapter itself is fetched.
type ChapterReference struct {
	URL   string  `json:"url"`
	Title *string `json:"title,omitempty"`
}

func Chapter(url string) ChapterReference {
	return ChapterReference{URL: url}
}

func TitledChapter(url, title string) ChapterReference {
	return ChapterReference{URL: url, Title: &title}
}
