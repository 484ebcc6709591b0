package domain

// Sticker is one emoji sticker of a pack.
type Sticker struct {
	ID    string `json:"id"`
	Emoji string `json:"emoji"`
	Name  string `json:"name"`
}

// StickerPack is a named group of stickers.
type StickerPack struct {
	Name     string    `json:"name"`
	Stickers []Sticker `json:"stickers"`
}

// StickerPacks is the built-in catalog, in display order.
var StickerPacks = []StickerPack{
	{Name: "emotions", Stickers: []Sticker{
		{ID: "smile", Emoji: "😊", Name: "Smile"},
		{ID: "laugh", Emoji: "😂", Name: "Laugh"},
		{ID: "love", Emoji: "😍", Name: "Love"},
		{ID: "cool", Emoji: "😎", Name: "Cool"},
		{ID: "thinking", Emoji: "🤔", Name: "Thinking"},
		{ID: "surprised", Emoji: "😮", Name: "Surprised"},
		{ID: "sad", Emoji: "😢", Name: "Sad"},
		{ID: "angry", Emoji: "😠", Name: "Angry"},
		{ID: "sleepy", Emoji: "😴", Name: "Sleepy"},
		{ID: "party", Emoji: "🥳", Name: "Party"},
		{ID: "fire", Emoji: "🔥", Name: "Fire"},
		{ID: "star", Emoji: "⭐", Name: "Star"},
	}},
	{Name: "hands", Stickers: []Sticker{
		{ID: "thumbsup", Emoji: "👍", Name: "Thumbs up"},
		{ID: "thumbsdown", Emoji: "👎", Name: "Thumbs down"},
		{ID: "ok", Emoji: "👌", Name: "OK"},
		{ID: "clap", Emoji: "👏", Name: "Applause"},
		{ID: "wave", Emoji: "👋", Name: "Hello"},
		{ID: "muscle", Emoji: "💪", Name: "Strength"},
		{ID: "pray", Emoji: "🙏", Name: "Prayer"},
		{ID: "peace", Emoji: "✌️", Name: "Peace"},
	}},
	{Name: "hearts", Stickers: []Sticker{
		{ID: "redheart", Emoji: "❤️", Name: "Red heart"},
		{ID: "heart", Emoji: "💖", Name: "Heart"},
		{ID: "heartbreak", Emoji: "💔", Name: "Broken heart"},
		{ID: "kiss", Emoji: "💋", Name: "Kiss"},
		{ID: "rose", Emoji: "🌹", Name: "Rose"},
	}},
	{Name: "animals", Stickers: []Sticker{
		{ID: "dog", Emoji: "🐶", Name: "Dog"},
		{ID: "cat", Emoji: "🐱", Name: "Cat"},
		{ID: "monkey", Emoji: "🐵", Name: "Monkey"},
		{ID: "lion", Emoji: "🦁", Name: "Lion"},
		{ID: "unicorn", Emoji: "🦄", Name: "Unicorn"},
		{ID: "penguin", Emoji: "🐧", Name: "Penguin"},
	}},
}

// LookupSticker finds a sticker by id across all packs.
func LookupSticker(id string) (Sticker, bool) {
	for _, pack := range StickerPacks {
		for _, s := range pack.Stickers {
			if s.ID == id {
				return s, true
			}
		}
	}
	return Sticker{}, false
}
