// Package content holds the bilingual (Korean/English) copy of the CM Story
// site: company details, navigation, products, business models, notices,
// certifications, FAQs and contact form options.
//
// Content is a YAML document validated against an embedded CUE schema before
// it is decoded. Default returns the document shipped with the binary.
package content
