// Package replies is the bot's reply-text catalog.
//
// Defaults carry the original bot's wording; any key can be overridden
// from a YAML file. Texts may contain {name}-style placeholders filled
// at render time.
package replies

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Catalog keys.
const (
	KeyWarnAbuse     = "warnAbuse"     // channel message abused glyphs
	KeyWarnForward   = "warnForward"   // forwarded-into-channel message abused glyphs
	KeyReady         = "ready"         // pending state recorded, awaiting words
	KeyDelivered     = "delivered"     // relay succeeded; {target}
	KeyNotMember     = "notMember"     // bot not in target locus; {bot} {target}
	KeyAPIError      = "apiError"      // downstream failure; {error}
	KeyInternalError = "internalError" // should-not-happen; {detail}
	KeyUserNotFound  = "userNotFound"  // @-tag matched no user
	KeyChanNotFound  = "chanNotFound"  // #-tag matched no channel
	KeyP2PFailed     = "p2pFailed"     // could not start direct conversation
	KeyUsageHint     = "usageHint"     // no trailing destination tag
	KeyCleared       = "cleared"       // clear command confirmation
	KeyCacheError    = "cacheError"    // both session slots set
	KeyNotUnderstood = "notUnderstood" // unsupported subtype; {bot}
	KeyHelpIntro     = "helpIntro"     // help command lead-in
	KeyHelpReply     = "helpReply"     // help scenario 1; {bot}
	KeyHelpSend      = "helpSend"      // help scenario 2; {bot}
)

var defaults = map[string]string{
	KeyWarnAbuse:     "滥用感叹号不是成熟的表现，我劝你冷静。",
	KeyWarnForward:   "你在退群的边缘试探，答应我别转发滥用感叹号的消息好吗？",
	KeyReady:         "我是你的传声筒，有话请说。",
	KeyDelivered:     "你的声音已传达到 {target} 。",
	KeyNotMember:     "@{bot} 还不是{target}的成员。",
	KeyAPIError:      "出了点小问题，请稍后重试。（{error}）",
	KeyInternalError: "出大问题了, 请联系作者。（{detail}）",
	KeyUserNotFound:  "消息接收用户不存在。",
	KeyChanNotFound:  "消息接收讨论组不存在。",
	KeyP2PFailed:     "与用户创建私聊会话失败。",
	KeyUsageHint:     "以#讨论组或@用户名结尾，传声筒可以把消息发给对方。",
	KeyCleared:       "缓存消息已清空。",
	KeyCacheError:    "消息缓存错误，请输入 clear 清空缓存。",
	KeyNotUnderstood: "{bot} 无法理解你的话。",
	KeyHelpIntro:     "我就是你的传声筒",
	KeyHelpReply:     "场景一，匿名回复消息：把想要匿名回复的消息转发给 @{bot} ，顺便说点什么。支持回复讨论组、临时组消息的文本消息和图片消息。",
	KeyHelpSend:      "场景二, 匿名发送消息：把想要说的发给 @{bot} ，并且以 #讨论组 或 @用户名 结尾。支持发送讨论组，私聊的文本消息和图片消息。",
}

// HelpImageURLs are the illustrative attachments sent with help.
var HelpImageURLs = []string{
	"https://github.com/zomco/hubot-speaker/blob/master/resources/example2.gif?raw=true",
	"https://github.com/zomco/hubot-speaker/blob/master/resources/example3.gif?raw=true",
}

// Catalog resolves reply keys to rendered texts.
type Catalog struct {
	texts map[string]string
}

// Default returns a catalog with the built-in texts.
func Default() *Catalog {
	texts := make(map[string]string, len(defaults))
	for k, v := range defaults {
		texts[k] = v
	}
	return &Catalog{texts: texts}
}

// Load returns the default catalog with overrides applied from a YAML
// file mapping keys to texts. Unknown keys are rejected so typos in
// the override file surface early.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replies file: %w", err)
	}

	overrides := make(map[string]string)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse replies file: %w", err)
	}

	for key, text := range overrides {
		if _, ok := c.texts[key]; !ok {
			return nil, fmt.Errorf("unknown reply key %q", key)
		}
		c.texts[key] = text
	}
	return c, nil
}

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// Render returns the text for key with {placeholder} values filled
// from data. Unmatched placeholders are preserved verbatim.
func (c *Catalog) Render(key string, data map[string]string) string {
	text, ok := c.texts[key]
	if !ok {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if val, ok := data[name]; ok {
			return val
		}
		return match
	})
}

// Text returns the raw text for key.
func (c *Catalog) Text(key string) string {
	return c.texts[key]
}
