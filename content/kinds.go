package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Built-in section kinds.
const (
	KindHero         Kind = "hero"
	KindText         Kind = "text"
	KindImage        Kind = "image"
	KindGallery      Kind = "gallery"
	KindFAQ          Kind = "faq"
	KindPricing      Kind = "pricing"
	KindCTA          Kind = "cta"
	KindTestimonials Kind = "testimonials"
	KindFeatures     Kind = "features"
	KindVideo        Kind = "video"
)

const (
	maxGalleryImages      = 24
	defaultGalleryColumns = 3
	maxFAQItems           = 50
	maxPlans              = 6
	maxPlanFeatures       = 20
	maxTestimonials       = 24
	maxFeatures           = 24
	maxIconLen            = 8
)

func init() {
	mustRegister(Spec{
		Kind:        KindHero,
		Label:       "Hero banner",
		Description: "Large heading with optional background image and call to action.",
		New:         func() Content { return &Hero{} },
		Default: func() Content {
			return &Hero{
				Heading:    "A bold headline",
				Subheading: "One sentence that tells visitors why they should keep reading.",
				Align:      AlignCenter,
			}
		},
	})
	mustRegister(Spec{
		Kind:        KindText,
		Label:       "Text",
		Description: "Markdown formatted text with an optional heading.",
		New:         func() Content { return &Text{} },
		Default: func() Content {
			return &Text{Body: "Write something **worth reading**."}
		},
	})
	mustRegister(Spec{
		Kind:        KindImage,
		Label:       "Image",
		Description: "A single image with caption.",
		New:         func() Content { return &Image{} },
		Default:     func() Content { return &Image{} },
	})
	mustRegister(Spec{
		Kind:        KindGallery,
		Label:       "Gallery",
		Description: "Grid of images.",
		New:         func() Content { return &Gallery{} },
		Default:     func() Content { return &Gallery{Columns: defaultGalleryColumns, Images: []GalleryImage{}} },
	})
	mustRegister(Spec{
		Kind:        KindFAQ,
		Label:       "FAQ",
		Description: "Questions with collapsible answers.",
		New:         func() Content { return &FAQ{} },
		Default: func() Content {
			return &FAQ{
				Heading: "Frequently asked questions",
				Items: []FAQItem{
					{Question: "What is this?", Answer: "A short answer goes here."},
				},
			}
		},
	})
	mustRegister(Spec{
		Kind:        KindPricing,
		Label:       "Pricing table",
		Description: "Side by side plans with features and a call to action each.",
		New:         func() Content { return &Pricing{} },
		Default: func() Content {
			return &Pricing{
				Heading: "Pricing",
				Plans: []Plan{
					{Name: "Starter", Price: "$0", Period: "month", Features: []string{"One project"}},
					{Name: "Pro", Price: "$12", Period: "month", Features: []string{"Unlimited projects", "Priority support"}, Highlighted: true},
				},
			}
		},
	})
	mustRegister(Spec{
		Kind:        KindCTA,
		Label:       "Call to action",
		Description: "Short pitch with a single button.",
		New:         func() Content { return &CTA{} },
		Default: func() Content {
			return &CTA{Heading: "Ready to start?", ButtonLabel: "Get in touch", ButtonURL: "/"}
		},
	})
	mustRegister(Spec{
		Kind:        KindTestimonials,
		Label:       "Testimonials",
		Description: "Quotes from customers or readers.",
		New:         func() Content { return &Testimonials{} },
		Default: func() Content {
			return &Testimonials{
				Heading: "What people say",
				Items:   []Testimonial{{Quote: "It just works.", Author: "A happy reader"}},
			}
		},
	})
	mustRegister(Spec{
		Kind:        KindFeatures,
		Label:       "Feature list",
		Description: "Grid of short feature blurbs with icons.",
		New:         func() Content { return &Features{} },
		Default: func() Content {
			return &Features{
				Heading: "Features",
				Items: []Feature{
					{Icon: "⚡", Title: "Fast", Body: "Pages render on the server."},
					{Icon: "🔒", Title: "Safe", Body: "Everything is escaped."},
				},
			}
		},
	})
	mustRegister(Spec{
		Kind:        KindVideo,
		Label:       "Video",
		Description: "Embedded YouTube or Vimeo video.",
		New:         func() Content { return &Video{} },
		Default:     func() Content { return &Video{} },
	})
}

// Hero alignment values.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
)

// Hero is a large banner at the top of a page.
type Hero struct {
	Heading    string `json:"heading"`
	Subheading string `json:"subheading,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	CTALabel   string `json:"cta_label,omitempty"`
	CTAURL     string `json:"cta_url,omitempty"`
	Align      string `json:"align,omitempty"`
}

func (h *Hero) Kind() Kind { return KindHero }

func (h *Hero) Validate() error {
	if h.Heading == "" {
		return invalid("heading", "is required")
	}
	if h.Align != "" && h.Align != AlignLeft && h.Align != AlignCenter {
		return invalid("align", "must be left or center")
	}
	if h.CTALabel != "" && h.CTAURL == "" {
		return invalid("cta_url", "is required when a button label is set")
	}
	return firstErr(
		checkLen("heading", h.Heading, maxHeadingLen),
		checkLen("subheading", h.Subheading, maxHeadingLen*2),
		checkURL("image_url", h.ImageURL, false),
		checkURL("cta_url", h.CTAURL, false),
	)
}

func (h *Hero) Decode(form url.Values) error {
	*h = Hero{
		Heading:    text(form, "heading"),
		Subheading: text(form, "subheading"),
		ImageURL:   text(form, "image_url"),
		CTALabel:   text(form, "cta_label"),
		CTAURL:     text(form, "cta_url"),
		Align:      text(form, "align"),
	}
	return nil
}

// Text is a block of Markdown.
type Text struct {
	Heading string `json:"heading,omitempty"`
	Body    string `json:"body"`
}

func (t *Text) Kind() Kind { return KindText }

func (t *Text) Validate() error {
	return firstErr(
		checkLen("heading", t.Heading, maxHeadingLen),
		checkLen("body", t.Body, maxTextLen),
	)
}

func (t *Text) Decode(form url.Values) error {
	*t = Text{
		Heading: text(form, "heading"),
		Body:    strings.ReplaceAll(form.Get("body"), "\r\n", "\n"),
	}
	return nil
}

// Image is a single figure.
type Image struct {
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	Caption   string `json:"caption,omitempty"`
	FullWidth bool   `json:"full_width,omitempty"`
}

func (i *Image) Kind() Kind { return KindImage }

func (i *Image) Validate() error {
	if i.URL != "" && i.Alt == "" {
		return invalid("alt", "is required for accessibility")
	}
	return firstErr(
		checkURL("url", i.URL, false),
		checkLen("alt", i.Alt, maxHeadingLen),
		checkLen("caption", i.Caption, maxHeadingLen*2),
	)
}

func (i *Image) Decode(form url.Values) error {
	*i = Image{
		URL:       text(form, "url"),
		Alt:       text(form, "alt"),
		Caption:   text(form, "caption"),
		FullWidth: flag(form, "full_width"),
	}
	return nil
}

// GalleryImage is one tile of a Gallery.
type GalleryImage struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Caption string `json:"caption,omitempty"`
}

// Gallery is a grid of images.
type Gallery struct {
	Heading string         `json:"heading,omitempty"`
	Columns int            `json:"columns"`
	Images  []GalleryImage `json:"images"`
}

func (g *Gallery) Kind() Kind { return KindGallery }

func (g *Gallery) Validate() error {
	if g.Columns < 2 || g.Columns > 4 {
		return invalid("columns", "must be between 2 and 4")
	}
	if len(g.Images) > maxGalleryImages {
		return invalid("images", "at most %d images", maxGalleryImages)
	}
	for n, img := range g.Images {
		field := fmt.Sprintf("images[%d]", n)
		if err := checkURL(field+".url", img.URL, true); err != nil {
			return err
		}
		if img.Alt == "" {
			return invalid(field+".alt", "is required for accessibility")
		}
	}
	return checkLen("heading", g.Heading, maxHeadingLen)
}

func (g *Gallery) normalize() {
	if g.Columns == 0 {
		g.Columns = defaultGalleryColumns
	}
	g.Columns = clamp(g.Columns, 2, 4)
}

func (g *Gallery) Decode(form url.Values) error {
	*g = Gallery{
		Heading: text(form, "heading"),
		Columns: clamp(number(form, "columns", defaultGalleryColumns), 2, 4),
		Images:  []GalleryImage{},
	}
	for _, r := range rows(form, "image_url", "image_alt", "image_caption") {
		g.Images = append(g.Images, GalleryImage{URL: r[0], Alt: r[1], Caption: r[2]})
	}
	return nil
}

// FAQItem is a question with a Markdown answer.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQ is a list of questions and answers.
type FAQ struct {
	Heading string    `json:"heading,omitempty"`
	Items   []FAQItem `json:"items"`
}

func (f *FAQ) Kind() Kind { return KindFAQ }

func (f *FAQ) Validate() error {
	if len(f.Items) > maxFAQItems {
		return invalid("items", "at most %d questions", maxFAQItems)
	}
	for n, it := range f.Items {
		field := fmt.Sprintf("items[%d]", n)
		if it.Question == "" {
			return invalid(field+".question", "is required")
		}
		if it.Answer == "" {
			return invalid(field+".answer", "is required")
		}
		if err := checkLen(field+".answer", it.Answer, maxTextLen); err != nil {
			return err
		}
	}
	return checkLen("heading", f.Heading, maxHeadingLen)
}

func (f *FAQ) Decode(form url.Values) error {
	*f = FAQ{Heading: text(form, "heading"), Items: []FAQItem{}}
	for _, r := range rows(form, "question", "answer") {
		f.Items = append(f.Items, FAQItem{Question: r[0], Answer: r[1]})
	}
	return nil
}

// Plan is one column of a Pricing table.
type Plan struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Period      string   `json:"period,omitempty"`
	Features    []string `json:"features,omitempty"`
	CTALabel    string   `json:"cta_label,omitempty"`
	CTAURL      string   `json:"cta_url,omitempty"`
	Highlighted bool     `json:"highlighted,omitempty"`
}

// Pricing compares plans side by side.
type Pricing struct {
	Heading string `json:"heading,omitempty"`
	Plans   []Plan `json:"plans"`
}

func (p *Pricing) Kind() Kind { return KindPricing }

func (p *Pricing) Validate() error {
	if len(p.Plans) > maxPlans {
		return invalid("plans", "at most %d plans", maxPlans)
	}
	for n, pl := range p.Plans {
		field := fmt.Sprintf("plans[%d]", n)
		if pl.Name == "" {
			return invalid(field+".name", "is required")
		}
		if len(pl.Features) > maxPlanFeatures {
			return invalid(field+".features", "at most %d features", maxPlanFeatures)
		}
		if pl.CTALabel != "" && pl.CTAURL == "" {
			return invalid(field+".cta_url", "is required when a button label is set")
		}
		if err := checkURL(field+".cta_url", pl.CTAURL, false); err != nil {
			return err
		}
	}
	return checkLen("heading", p.Heading, maxHeadingLen)
}

func (p *Pricing) Decode(form url.Values) error {
	*p = Pricing{Heading: text(form, "heading"), Plans: []Plan{}}
	keys := []string{"plan_name", "plan_price", "plan_period", "plan_features", "plan_cta_label", "plan_cta_url", "plan_highlighted"}
	for _, r := range rows(form, keys...) {
		p.Plans = append(p.Plans, Plan{
			Name:        r[0],
			Price:       r[1],
			Period:      r[2],
			Features:    lines(r[3]),
			CTALabel:    r[4],
			CTAURL:      r[5],
			Highlighted: r[6] == "1",
		})
	}
	return nil
}

// CTA is a call to action band.
type CTA struct {
	Heading     string `json:"heading"`
	Body        string `json:"body,omitempty"`
	ButtonLabel string `json:"button_label"`
	ButtonURL   string `json:"button_url"`
}

func (c *CTA) Kind() Kind { return KindCTA }

func (c *CTA) Validate() error {
	if c.Heading == "" {
		return invalid("heading", "is required")
	}
	if c.ButtonLabel == "" {
		return invalid("button_label", "is required")
	}
	return firstErr(
		checkLen("heading", c.Heading, maxHeadingLen),
		checkLen("body", c.Body, maxTextLen),
		checkURL("button_url", c.ButtonURL, true),
	)
}

func (c *CTA) Decode(form url.Values) error {
	*c = CTA{
		Heading:     text(form, "heading"),
		Body:        text(form, "body"),
		ButtonLabel: text(form, "button_label"),
		ButtonURL:   text(form, "button_url"),
	}
	return nil
}

// Testimonial is a quote with attribution.
type Testimonial struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
	Role   string `json:"role,omitempty"`
}

// Testimonials is a list of quotes.
type Testimonials struct {
	Heading string        `json:"heading,omitempty"`
	Items   []Testimonial `json:"items"`
}

func (t *Testimonials) Kind() Kind { return KindTestimonials }

func (t *Testimonials) Validate() error {
	if len(t.Items) > maxTestimonials {
		return invalid("items", "at most %d testimonials", maxTestimonials)
	}
	for n, it := range t.Items {
		field := fmt.Sprintf("items[%d]", n)
		if it.Quote == "" {
			return invalid(field+".quote", "is required")
		}
		if it.Author == "" {
			return invalid(field+".author", "is required")
		}
	}
	return checkLen("heading", t.Heading, maxHeadingLen)
}

func (t *Testimonials) Decode(form url.Values) error {
	*t = Testimonials{Heading: text(form, "heading"), Items: []Testimonial{}}
	for _, r := range rows(form, "quote", "author", "role") {
		t.Items = append(t.Items, Testimonial{Quote: r[0], Author: r[1], Role: r[2]})
	}
	return nil
}

// Feature is one blurb of a Features grid.
type Feature struct {
	Icon  string `json:"icon,omitempty"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// Features is a grid of feature blurbs.
type Features struct {
	Heading string    `json:"heading,omitempty"`
	Items   []Feature `json:"items"`
}

func (f *Features) Kind() Kind { return KindFeatures }

func (f *Features) Validate() error {
	if len(f.Items) > maxFeatures {
		return invalid("items", "at most %d features", maxFeatures)
	}
	for n, it := range f.Items {
		field := fmt.Sprintf("items[%d]", n)
		if it.Title == "" {
			return invalid(field+".title", "is required")
		}
		if err := checkLen(field+".icon", it.Icon, maxIconLen); err != nil {
			return err
		}
	}
	return checkLen("heading", f.Heading, maxHeadingLen)
}

func (f *Features) Decode(form url.Values) error {
	*f = Features{Heading: text(form, "heading"), Items: []Feature{}}
	for _, r := range rows(form, "feature_icon", "feature_title", "feature_body") {
		f.Items = append(f.Items, Feature{Icon: r[0], Title: r[1], Body: r[2]})
	}
	return nil
}

// Video embeds a YouTube or Vimeo player.
type Video struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

func (v *Video) Kind() Kind { return KindVideo }

func (v *Video) Validate() error {
	if v.URL != "" && v.EmbedURL() == "" {
		return invalid("url", "must be a YouTube or Vimeo link")
	}
	return checkLen("caption", v.Caption, maxHeadingLen*2)
}

func (v *Video) Decode(form url.Values) error {
	*v = Video{URL: text(form, "url"), Caption: text(form, "caption")}
	return nil
}

var (
	youTubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
	vimeoID   = regexp.MustCompile(`^[0-9]{3,12}$`)
)

// EmbedURL returns the player URL for the video, or "" when the link does
// not point at a supported provider.
func (v *Video) EmbedURL() string {
	u, err := url.Parse(strings.TrimSpace(v.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.Trim(u.Path, "/")
	switch host {
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		id := u.Query().Get("v")
		if strings.HasPrefix(path, "embed/") {
			id = strings.TrimPrefix(path, "embed/")
		}
		if youTubeID.MatchString(id) {
			return "https://www.youtube-nocookie.com/embed/" + id
		}
	case "youtu.be":
		if youTubeID.MatchString(path) {
			return "https://www.youtube-nocookie.com/embed/" + path
		}
	case "vimeo.com", "player.vimeo.com":
		id := strings.TrimPrefix(path, "video/")
		if vimeoID.MatchString(id) {
			return "https://player.vimeo.com/video/" + id
		}
	}
	return ""
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
