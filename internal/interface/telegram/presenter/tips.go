package presenter

import (
	"math/rand/v2"
	"strings"
)

// TipDeck - тематический набор советов, из которого выбирается случайная выборка.
type TipDeck struct {
	Title string
	Tips  []string
}

// TipsPerView - сколько советов показывать за раз.
const TipsPerView = 4

// Sample returns n distinct tips in random order. A nil rng uses the global
// source.
func (d TipDeck) Sample(n int, rng *rand.Rand) []string {
	if n > len(d.Tips) {
		n = len(d.Tips)
	}
	if n <= 0 {
		return nil
	}

	var perm []int
	if rng != nil {
		perm = rng.Perm(len(d.Tips))
	} else {
		perm = rand.Perm(len(d.Tips))
	}

	out := make([]string, n)
	for i := range n {
		out[i] = d.Tips[perm[i]]
	}
	return out
}

// Tips renders a sample of tips under the deck title.
func Tips(title string, tips []string) string {
	if len(tips) == 0 {
		return "❌ No suggestions available at the moment."
	}
	var sb strings.Builder
	sb.WriteString("✨ <b>" + title + "</b> ✨\n\n")
	sb.WriteString("Here are some top tips to level up your game:\n\n")
	sb.WriteString(strings.Join(tips, "\n\n"))
	sb.WriteString("\n\n💡 Keep creating and shining! 🌟")
	return sb.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// DECKS
// ══════════════════════════════════════════════════════════════════════════════

var ContentCreationGuide = TipDeck{
	Title: "Content Creation Guide",
	Tips: []string{
		"🎯 <b>Identify Your Niche:</b> Focus on a specific area of expertise that you love and excel in.",
		"📊 <b>Know Your Audience:</b> Analyze their demographics, interests, and preferences.",
		"🌟 <b>Follow Trends:</b> Use tools like Google Trends to discover what's popular in your niche.",
		"🗓️ <b>Stay Consistent:</b> Create a content calendar to ensure regular posting.",
		"⏳ <b>Batch-Create Content:</b> Dedicate time to produce multiple pieces in one go.",
		"🎨 <b>Leverage Visual Tools:</b> Use apps like Canva or Adobe Spark for professional designs.",
		"🖋️ <b>Craft Engaging Headlines:</b> Catch attention with creative titles.",
		"📖 <b>Tell a Story:</b> Make your content relatable and emotional to connect with your audience.",
		"🔄 <b>Repurpose Content:</b> Turn one piece into multiple formats (e.g., blog to video).",
		"📈 <b>Track Performance:</b> Use analytics tools to see what's working and refine your strategy.",
		"🤝 <b>Collaborate:</b> Work with creators in your niche to expand your reach.",
		"💬 <b>Engage with Followers:</b> Respond to comments and messages actively.",
		"🏷️ <b>Use Hashtags Wisely:</b> Expand your reach with relevant hashtags.",
		"⏰ <b>Timing Matters:</b> Post when your audience is most active.",
		"💡 <b>Invest in Tools:</b> Good lighting and sound equipment elevate your content.",
		"🎥 <b>Experiment with Formats:</b> Try videos, reels, blogs, or other content types.",
		"🔑 <b>Stay Authentic:</b> Be yourself; audiences love genuine creators.",
		"📢 <b>Call-to-Action:</b> Encourage followers to like, comment, or share.",
		"🎓 <b>Educate, Entertain, or Inspire:</b> Provide value with every post.",
		"🌐 <b>Learn SEO:</b> Improve discoverability on platforms and search engines.",
	},
}

var CreatorTips2025 = TipDeck{
	Title: "Creator Tips for 2025",
	Tips: []string{
		"🎥 <b>Master Short-Form Videos:</b> Platforms like TikTok and YouTube Shorts are booming.",
		"🌌 <b>Explore the Metaverse:</b> Use AR/VR content and virtual events to engage audiences.",
		"🤖 <b>Leverage AI Tools:</b> Use ChatGPT for scripting, ideation, and planning.",
		"✨ <b>Build a Personal Brand:</b> Stay consistent across platforms with your unique voice.",
		"📈 <b>Adapt to Algorithms:</b> Stay updated with changes on platforms like Instagram and YouTube.",
		"🔒 <b>Exclusive Content:</b> Offer memberships or subscriptions for premium content.",
		"🎞️ <b>Learn Editing:</b> Tools like Premiere Pro or CapCut make your content professional.",
		"🎭 <b>Create Interactive Content:</b> Use polls, quizzes, and live streams to engage your followers.",
		"🌐 <b>Join Niche Platforms:</b> Communities on Discord or Threads can grow your base.",
		"🤝 <b>Collaborate:</b> Work with micro-influencers for targeted reach.",
		"💰 <b>Monetization Strategy:</b> Use affiliate marketing, ads, or brand sponsorships.",
		"📧 <b>Email Marketing:</b> Build a direct line to your audience through newsletters.",
		"📊 <b>Data-Driven Decisions:</b> Use insights to refine and improve your content.",
		"🌍 <b>Go Multilingual:</b> Break language barriers to reach global audiences.",
		"🌀 <b>360° Content:</b> Try immersive formats like VR videos for new experiences.",
		"🌿 <b>Sustainability Focus:</b> Align your content with eco-conscious trends.",
		"🤝 <b>Team Up:</b> Build a network to handle different aspects of content creation.",
		"📚 <b>Focus on Evergreen Content:</b> Ensure your work remains valuable over time.",
		"💎 <b>Stay Transparent:</b> Build trust by being open with your audience.",
		"🛠️ <b>Diversify Revenue Streams:</b> Explore merch, courses, or eBooks.",
	},
}
