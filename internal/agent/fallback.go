package agent

// Pre-written replies used when the model call fails. Selected by turn-count
// parity: even turns probe, odd turns stall, so consecutive degraded turns
// still read like a conversation.
var probeFallbacks = []string{
	"Yaar, I'm really worried now. Which bank sent this message? I didn't get any notification in my banking app. Can you tell me more about why my account will be blocked?",
	"Hmm, this is concerning. I don't understand why my account would have a problem. Which bank are you calling from, and what exactly do I need to do?",
	"Wait, I'm confused. Is this really from my bank? I want to verify first. Can you tell me your branch and a number I can call back?",
	"Which bank is this from? I'm worried about my account but I also don't want to fall for fraud. Can you explain what happened exactly?",
}

var stallFallbacks = []string{
	"Ok ok, give me two minutes. My banking app is taking forever to open, network is very bad here. Can you send the details once more so I have them ready?",
	"Acha, I'll do it, but my phone is acting up. Tell me again where exactly I need to send it? I don't want to make a mistake.",
	"One minute please, I'm looking for my chequebook to check the number. Meanwhile can you confirm the UPI ID or account where this goes?",
	"I'm trying, but the OTP hasn't come yet. Is there another way? Maybe share your number and I'll call once it arrives.",
}

var disengageFallbacks = []string{
	"Listen, my phone battery is about to die and I have to step into a meeting. I'll go to the bank branch tomorrow morning and sort this out properly. Thank you.",
	"Acha, I have to go now, my family is calling me for dinner. I will visit the branch myself tomorrow and check all this. Bye for now.",
}

// fallbackReply picks a degraded-mode reply for the given turn.
func fallbackReply(turn int, disengage bool) string {
	if disengage {
		return disengageFallbacks[turn%len(disengageFallbacks)]
	}
	if turn%2 == 0 {
		return probeFallbacks[(turn/2)%len(probeFallbacks)]
	}
	return stallFallbacks[(turn/2)%len(stallFallbacks)]
}
