package pipeline

// Fixed replies for every path that does not reach a model answer.
// None of them carry provider detail.
const (
	NoticeEmpty         = "👋 Please send a message, voice note, image or link and I will fact-check it for you."
	NoticeNotConfigured = "⚙️ This fact-check service is still being set up. Please try again later."
	NoticeFetchFailed   = "😔 Sorry, I could not download your attachment. Please send it again."
	NoticeRetryAudio    = "🎙️ I could not make out your voice note. Please try again, or type your message."
	NoticeRetryImage    = "🖼️ I could not read anything in that image. Please try a clearer picture, or type the claim."
	NoticeReasoning     = "😔 Sorry, I could not check that right now. Please try again in a few minutes."
)
