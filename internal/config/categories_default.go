package config

// defaultCategoriesJSON seeds a fresh install with a workable rule set.
// Users edit the file (or the API categories endpoint) afterwards.
const defaultCategoriesJSON = `{
  "apps": {
    "code": "development",
    "visual studio code": "development",
    "iterm2": "development",
    "terminal": "development",
    "xcode": "development",
    "intellij idea": "development",
    "goland": "development",
    "slack": "communication",
    "discord": "communication",
    "mail": "communication",
    "messages": "communication",
    "kakaotalk": "communication",
    "zoom.us": "communication",
    "notion": "research",
    "obsidian": "research",
    "preview": "research",
    "music": "entertainment",
    "spotify": "entertainment",
    "tv": "entertainment"
  },
  "domains": {
    "github.com": "development",
    "gitlab.com": "development",
    "stackoverflow.com": "development",
    "localhost": "development",
    "developer.mozilla.org": "research",
    "wikipedia.org": "research",
    "arxiv.org": "research",
    "chat.openai.com": "research",
    "claude.ai": "research",
    "gmail.com": "communication",
    "mail.google.com": "communication",
    "slack.com": "communication",
    "youtube.com": "entertainment",
    "netflix.com": "entertainment",
    "twitch.tv": "entertainment",
    "twitter.com": "sns",
    "x.com": "sns",
    "instagram.com": "sns",
    "facebook.com": "sns",
    "reddit.com": "sns",
    "amazon.com": "shopping",
    "coupang.com": "shopping",
    "ebay.com": "shopping"
  }
}
`
