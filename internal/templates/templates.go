// Package templates holds the localized citizen-facing message catalog.
package templates

import "strings"

// Lang codes for the three supported citizen languages.
const (
	LangGujarati = "gu"
	LangHindi    = "hi"
	LangEnglish  = "en"
)

// DefaultLang is used before a citizen has picked a language.
const DefaultLang = LangGujarati

// Key identifies a message template.
type Key string

// Template keys for each step of the intake conversation.
const (
	KeyWelcome           Key = "welcome"
	KeyCategoryPrompt    Key = "category_prompt"
	KeyLocationPrompt    Key = "location_prompt"
	KeyDescriptionPrompt Key = "description_prompt"
	KeyPhotoReceived     Key = "photo_received"
	KeyPhotoError        Key = "photo_error"
	KeyVoiceConfirm      Key = "voice_confirm"
	KeyVoiceError        Key = "voice_error"
	KeyConfirmation      Key = "confirmation"
	KeySubmitError       Key = "submit_error"
	KeyGenericError      Key = "generic_error"
)

// catalog maps key -> lang -> template text. Placeholders use {{name}}.
var catalog = map[Key]map[string]string{
	KeyWelcome: {
		LangGujarati: "🙏 નમસ્તે! નગરસેવામાં આપનું સ્વાગત છે.\n\nઆ બોટ શહેરની સફાઈ સમસ્યાઓ નોંધવા માટે છે.\n\nકૃપા કરીને તમારી ભાષા પસંદ કરો:\n1️⃣ हिंदी (Hindi)\n2️⃣ ગુજરાતી (Gujarati)\n3️⃣ English",
		LangHindi:    "🙏 नमस्ते! नगरसेवा में आपका स्वागत है।\n\nयह बॉट शहर की सफाई समस्याओं की रिपोर्ट करने के लिए है।\n\nकृपया अपनी भाषा चुनें:\n1️⃣ हिंदी (Hindi)\n2️⃣ ગુજરાતી (Gujarati)\n3️⃣ English",
		LangEnglish:  "🙏 Hello! Welcome to NagarSeva.\n\nThis bot is for reporting sanitation issues in your city.\n\nPlease choose your language:\n1️⃣ हिंदी (Hindi)\n2️⃣ ગુજરાતી (Gujarati)\n3️⃣ English",
	},
	KeyCategoryPrompt: {
		LangGujarati: "સરસ! હવે તમે કયા પ્રકારની સમસ્યા નોંધાવવા માંગો છો?\n\n1️⃣ કચરો/કચરાપેટી 🗑️\n2️⃣ ગટર/નાળું 🚰\n3️⃣ પાણીનું લીકેજ 💧\n4️⃣ માર્ગ/માળખું 🛣️\n5️⃣ અન્ય ❓\n\nનંબર મોકલો અથવા વૉઇસ મેસેજમાં સમજાવો 🎤",
		LangHindi:    "बहुत बढ़िया! अब आप किस प्रकार की समस्या रिपोर्ट करना चाहते हैं?\n\n1️⃣ कचरा/कचरापेटी 🗑️\n2️⃣ गटर/नाली 🚰\n3️⃣ पानी का रिसाव 💧\n4️⃣ सड़क/ढांचा 🛣️\n5️⃣ अन्य ❓\n\nनंबर भेजें या वॉइस मैसेज में बताएं 🎤",
		LangEnglish:  "Great! What type of issue would you like to report?\n\n1️⃣ Garbage/Waste 🗑️\n2️⃣ Drainage/Sewage 🚰\n3️⃣ Water Leakage 💧\n4️⃣ Road/Infrastructure 🛣️\n5️⃣ Other ❓\n\nSend number or explain via voice message 🎤",
	},
	KeyLocationPrompt: {
		LangGujarati: "{{category}} સમસ્યા નોંધાઈ. હવે કૃપા કરીને:\n\n📍 તમારું સ્થાન શેર કરો (Location button દબાવો)\n📸 સમસ્યાનો ફોટો મોકલો\n🎤 અથવા વૉઇસ મેસેજમાં વિગતે સમજાવો\n\nઉદાહરણ: \"ભક્તિનગર વોર્ડ 15 માં સ્કૂલ પાસે કચરાપેટી ભરાઈ ગઈ છે\"",
		LangHindi:    "{{category}} समस्या दर्ज हुई। अब कृपया:\n\n📍 अपना स्थान साझा करें (Location button दबाएं)\n📸 समस्या की फोटो भेजें\n🎤 या वॉइस मैसेज में विस्तार से बताएं\n\nउदाहरण: \"भक्तिनगर वार्ड 15 में स्कूल के पास कचरापेटी भर गई है\"",
		LangEnglish:  "{{category}} issue noted. Now please:\n\n📍 Share your location (Press Location button)\n📸 Send photos of the issue\n🎤 Or explain via voice message\n\nExample: \"Garbage bin overflowing near school in Bhaktinagar Ward 15\"",
	},
	KeyDescriptionPrompt: {
		LangGujarati: "કૃપા કરીને સમસ્યાની વિગતે માહિતી આપો:\n📝 શું સમસ્યા છે?\n⏰ ક્યારે શરૂ થઈ?\n🚨 કેટલી ગંભીર છે?",
		LangHindi:    "कृपया समस्या की विस्तृत जानकारी दें:\n📝 क्या समस्या है?\n⏰ कब शुरू हुई?\n🚨 कितनी गंभीर है?",
		LangEnglish:  "Please provide detailed information about the issue:\n📝 What is the problem?\n⏰ When did it start?\n🚨 How severe is it?",
	},
	KeyPhotoReceived: {
		LangGujarati: "📸 ફોટો મળ્યો! હવે કૃપા કરીને તમારું સ્થાન શેર કરો.",
		LangHindi:    "📸 फोटो मिली! अब कृपया अपना स्थान साझा करें।",
		LangEnglish:  "📸 Photo received! Now please share your location.",
	},
	KeyPhotoError: {
		LangGujarati: "ફોટો અપલોડ કરવામાં સમસ્યા. કૃપા કરીને ફરીથી પ્રયાસ કરો.",
		LangHindi:    "फोटो अपलोड करने में समस्या। कृपया फिर से प्रयास करें।",
		LangEnglish:  "Problem uploading the photo. Please try again.",
	},
	KeyVoiceConfirm: {
		LangGujarati: "🎤 તમારો સંદેશ સમજાયો:\n\n\"{{description}}\"",
		LangHindi:    "🎤 आपका संदेश समझ गया:\n\n\"{{description}}\"",
		LangEnglish:  "🎤 Understood your message:\n\n\"{{description}}\"",
	},
	KeyVoiceError: {
		LangGujarati: "વૉઇસ મેસેજ સમજવામાં સમસ્યા. કૃપા કરીને લખીને મોકલો.",
		LangHindi:    "वॉइस मैसेज समझने में समस्या। कृपया लिखकर भेजें।",
		LangEnglish:  "Problem understanding the voice message. Please type it instead.",
	},
	KeyConfirmation: {
		LangGujarati: "✅ ધન્યવાદ! તમારી ફરિયાદ સફળતાપૂર્વક નોંધાઈ ગઈ છે.\n\n📋 ફરિયાદ નંબર: #{{id}}\n📍 સ્થાન: {{address}}\n🗂️ પ્રકાર: {{category}}\n📅 તારીખ: {{date}}\n\n🕐 સામાન્ય પ્રતિસાદ સમય: 24-48 કલાક\n👨‍💼 વોર્ડ અધિકારી: {{officer}}\n\nશું તમને બીજી કોઈ સમસ્યા નોંધાવવી છે?\n\"new\" લખો અથવા મુખ્ય મેનૂ માટે \"menu\" લખો।",
		LangHindi:    "✅ धन्यवाद! आपकी शिकायत सफलतापूर्वक दर्ज हो गई है।\n\n📋 शिकायत नंबर: #{{id}}\n📍 स्थान: {{address}}\n🗂️ प्रकार: {{category}}\n📅 दिनांक: {{date}}\n\n🕐 सामान्य प्रतिक्रिया समय: 24-48 घंटे\n👨‍💼 वार्ड अधिकारी: {{officer}}\n\nक्या आपको कोई और समस्या रिपोर्ट करनी है?\n\"new\" लिखें या मुख्य मेनू के लिए \"menu\" लिखें।",
		LangEnglish:  "✅ Thank you! Your complaint has been successfully registered.\n\n📋 Complaint ID: #{{id}}\n📍 Location: {{address}}\n🗂️ Category: {{category}}\n📅 Date: {{date}}\n\n🕐 Typical response time: 24-48 hours\n👨‍💼 Ward Officer: {{officer}}\n\nDo you want to report another issue?\nType \"new\" or \"menu\" for main menu.",
	},
	KeySubmitError: {
		LangGujarati: "ફરિયાદ નોંધવામાં સમસ્યા. કૃપા કરીને ફરીથી પ્રયાસ કરો.",
		LangHindi:    "शिकायत दर्ज करने में समस्या। कृपया फिर से प्रयास करें।",
		LangEnglish:  "Error submitting complaint. Please try again.",
	},
	KeyGenericError: {
		LangGujarati: "માફ કરશો, કોઈ તકનીકી સમસ્યા છે. કૃપા કરીને થોડી વારે પ્રયાસ કરો.",
		LangHindi:    "क्षमा करें, कोई तकनीकी समस्या है। कृपया थोड़ी देर बाद प्रयास करें।",
		LangEnglish:  "Sorry, there is a technical problem. Please try again shortly.",
	},
}

// Render returns the template for key in the given language with {{var}}
// placeholders substituted. Unknown languages fall back to Gujarati, the
// deployment's majority language; unknown keys return an empty string.
func Render(key Key, lang string, vars map[string]string) string {
	byLang, ok := catalog[key]
	if !ok {
		return ""
	}
	text, ok := byLang[lang]
	if !ok {
		text = byLang[DefaultLang]
	}
	for name, val := range vars {
		text = strings.ReplaceAll(text, "{{"+name+"}}", val)
	}
	return text
}

// Supported reports whether lang is a recognized language code.
func Supported(lang string) bool {
	switch lang {
	case LangGujarati, LangHindi, LangEnglish:
		return true
	}
	return false
}
