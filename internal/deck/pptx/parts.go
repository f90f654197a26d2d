package pptx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsP   = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsP14 = "http://schemas.microsoft.com/office/powerpoint/2010/main"

	relOfficeDocument = nsR + "/officeDocument"
	relCoreProps      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relExtendedProps  = nsR + "/extended-properties"
	relSlide          = nsR + "/slide"
	relSlideMaster    = nsR + "/slideMaster"
	relSlideLayout    = nsR + "/slideLayout"
	relTheme          = nsR + "/theme"
	relImage          = nsR + "/image"
	relAudio          = nsR + "/audio"
	relMedia          = "http://schemas.microsoft.com/office/2007/relationships/media"
	relPresProps      = nsR + "/presProps"
	relViewProps      = nsR + "/viewProps"
	relTableStyles    = nsR + "/tableStyles"

	ctPresentation = "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"
	ctSlide        = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctSlideLayout  = "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"
	ctSlideMaster  = "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"
	ctTheme        = "application/vnd.openxmlformats-officedocument.theme+xml"
	ctPresProps    = "application/vnd.openxmlformats-officedocument.presentationml.presProps+xml"
	ctViewProps    = "application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml"
	ctTableStyles  = "application/vnd.openxmlformats-officedocument.presentationml.tableStyles+xml"
	ctCoreProps    = "application/vnd.openxmlformats-package.core-properties+xml"
	ctAppProps     = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
	ctRels         = "application/vnd.openxmlformats-package.relationships+xml"

	iconPart = "ppt/media/image1.png"
)

// Placeholder geometry shared by layouts and slides.
var (
	boxCenterTitle = Box{X: Inches(0.75), Y: Inches(2.33), W: Inches(8.5), H: Inches(1.6)}
	boxSubtitle    = Box{X: Inches(1.5), Y: Inches(4.25), W: Inches(7), H: Inches(1.75)}
	boxTitle       = Box{X: Inches(0.5), Y: Inches(0.3), W: Inches(9), H: Inches(1.25)}
	boxBody        = Box{X: Inches(0.5), Y: Inches(1.75), W: Inches(9), H: Inches(4.95)}
)

type relationship struct {
	id, typ, target string
}

type pkg struct {
	pres       *Presentation
	mediaExts  map[string]bool
	hasMedia   bool
	mediaCount int
}

func newPackage(p *Presentation) *pkg {
	pk := &pkg{pres: p, mediaExts: map[string]bool{}}
	for _, s := range p.slides {
		for _, m := range s.media {
			pk.mediaExts[m.ext] = true
			pk.hasMedia = true
		}
	}
	return pk
}

func (pk *pkg) write(zw *zip.Writer) error {
	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", pk.contentTypes()},
		{"_rels/.rels", rels([]relationship{
			{"rId1", relOfficeDocument, "ppt/presentation.xml"},
			{"rId2", relCoreProps, "docProps/core.xml"},
			{"rId3", relExtendedProps, "docProps/app.xml"},
		})},
		{"docProps/core.xml", pk.coreProps()},
		{"docProps/app.xml", pk.appProps()},
		{"ppt/presentation.xml", pk.presentation()},
		{"ppt/_rels/presentation.xml.rels", pk.presentationRels()},
		{"ppt/presProps.xml", xmlHeader + `<p:presentationPr xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"/>`},
		{"ppt/viewProps.xml", xmlHeader + `<p:viewPr xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"><p:gridSpacing cx="76200" cy="76200"/></p:viewPr>`},
		{"ppt/tableStyles.xml", xmlHeader + `<a:tblStyleLst xmlns:a="` + nsA + `" def="{5C22544A-7EE6-4342-B048-85BDC9FD1C3A}"/>`},
		{"ppt/theme/theme1.xml", themeXML},
		{"ppt/slideMasters/slideMaster1.xml", slideMasterXML()},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", rels([]relationship{
			{"rId1", relSlideLayout, "../slideLayouts/slideLayout1.xml"},
			{"rId2", relSlideLayout, "../slideLayouts/slideLayout2.xml"},
			{"rId3", relTheme, "../theme/theme1.xml"},
		})},
		{"ppt/slideLayouts/slideLayout1.xml", slideLayoutXML(LayoutTitle)},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", layoutRels()},
		{"ppt/slideLayouts/slideLayout2.xml", slideLayoutXML(LayoutTitleAndContent)},
		{"ppt/slideLayouts/_rels/slideLayout2.xml.rels", layoutRels()},
	}

	for _, part := range parts {
		if err := writePart(zw, part.name, []byte(part.body)); err != nil {
			return err
		}
	}

	for i, s := range pk.pres.slides {
		if err := pk.writeSlide(zw, i+1, s); err != nil {
			return err
		}
	}

	if pk.hasMedia {
		if err := writePart(zw, iconPart, audioIcon()); err != nil {
			return err
		}
	}

	return nil
}

func (pk *pkg) writeSlide(zw *zip.Writer, num int, s *Slide) error {
	layoutNum := 1
	if s.layout == LayoutTitleAndContent {
		layoutNum = 2
	}

	slideRels := []relationship{{"rId1", relSlideLayout, fmt.Sprintf("../slideLayouts/slideLayout%d.xml", layoutNum)}}

	var pics strings.Builder
	shapeID := 4
	for _, m := range s.media {
		pk.mediaCount++
		mediaName := fmt.Sprintf("media%d%s", pk.mediaCount, m.ext)
		if err := writePart(zw, "ppt/media/"+mediaName, m.data); err != nil {
			return err
		}

		base := len(slideRels)
		audioID := fmt.Sprintf("rId%d", base+1)
		mediaID := fmt.Sprintf("rId%d", base+2)
		imageID := fmt.Sprintf("rId%d", base+3)
		slideRels = append(slideRels,
			relationship{audioID, relAudio, "../media/" + mediaName},
			relationship{mediaID, relMedia, "../media/" + mediaName},
			relationship{imageID, relImage, "../media/image1.png"},
		)

		pics.WriteString(audioPic(shapeID, m, audioID, mediaID, imageID))
		shapeID++
	}

	var shapes string
	switch s.layout {
	case LayoutTitle:
		shapes = placeholder(2, "Title 1", `type="ctrTitle"`, boxCenterTitle, s.title) +
			placeholder(3, "Subtitle 2", `type="subTitle" idx="1"`, boxSubtitle, s.body)
	default:
		shapes = placeholder(2, "Title 1", `type="title"`, boxTitle, s.title) +
			placeholder(3, "Content Placeholder 2", `idx="1"`, boxBody, s.body)
	}

	body := xmlHeader + `<p:sld xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `">` +
		`<p:cSld><p:spTree>` + groupHeader + shapes + pics.String() + `</p:spTree></p:cSld>` +
		`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`

	if err := writePart(zw, fmt.Sprintf("ppt/slides/slide%d.xml", num), []byte(body)); err != nil {
		return err
	}
	return writePart(zw, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", num), []byte(rels(slideRels)))
}

func (pk *pkg) contentTypes() string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	sb.WriteString(`<Default Extension="rels" ContentType="` + ctRels + `"/>`)
	sb.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	if pk.hasMedia {
		sb.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
		for _, ext := range []string{".mp3", ".wav", ".m4a"} {
			if pk.mediaExts[ext] {
				fmt.Fprintf(&sb, `<Default Extension="%s" ContentType="%s"/>`, ext[1:], mediaTypes[ext])
			}
		}
	}

	override := func(part, ct string) {
		fmt.Fprintf(&sb, `<Override PartName="%s" ContentType="%s"/>`, part, ct)
	}
	override("/ppt/presentation.xml", ctPresentation)
	override("/ppt/slideMasters/slideMaster1.xml", ctSlideMaster)
	override("/ppt/slideLayouts/slideLayout1.xml", ctSlideLayout)
	override("/ppt/slideLayouts/slideLayout2.xml", ctSlideLayout)
	for i := range pk.pres.slides {
		override(fmt.Sprintf("/ppt/slides/slide%d.xml", i+1), ctSlide)
	}
	override("/ppt/theme/theme1.xml", ctTheme)
	override("/ppt/presProps.xml", ctPresProps)
	override("/ppt/viewProps.xml", ctViewProps)
	override("/ppt/tableStyles.xml", ctTableStyles)
	override("/docProps/core.xml", ctCoreProps)
	override("/docProps/app.xml", ctAppProps)
	sb.WriteString(`</Types>`)
	return sb.String()
}

func (pk *pkg) coreProps() string {
	created := pk.pres.created.Format(time.RFC3339)
	return xmlHeader +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + escape(pk.pres.title) + `</dc:title>` +
		`<dc:creator>deckcast</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + created + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + created + `</dcterms:modified>` +
		`</cp:coreProperties>`
}

func (pk *pkg) appProps() string {
	return xmlHeader +
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
		`<Application>deckcast</Application>` +
		fmt.Sprintf(`<Slides>%d</Slides>`, len(pk.pres.slides)) +
		`</Properties>`
}

func (pk *pkg) presentation() string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<p:presentation xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `" saveSubsetFonts="1">`)
	sb.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	if len(pk.pres.slides) > 0 {
		sb.WriteString(`<p:sldIdLst>`)
		for i := range pk.pres.slides {
			fmt.Fprintf(&sb, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, firstSlideRel+i)
		}
		sb.WriteString(`</p:sldIdLst>`)
	}
	fmt.Fprintf(&sb, `<p:sldSz cx="%d" cy="%d" type="screen4x3"/>`, slideWidth, slideHeight)
	fmt.Fprintf(&sb, `<p:notesSz cx="%d" cy="%d"/>`, slideHeight, slideWidth)
	sb.WriteString(`</p:presentation>`)
	return sb.String()
}

// firstSlideRel is the relationship index of slide 1 in presentation.xml.rels.
const firstSlideRel = 6

func (pk *pkg) presentationRels() string {
	list := []relationship{
		{"rId1", relSlideMaster, "slideMasters/slideMaster1.xml"},
		{"rId2", relTheme, "theme/theme1.xml"},
		{"rId3", relPresProps, "presProps.xml"},
		{"rId4", relViewProps, "viewProps.xml"},
		{"rId5", relTableStyles, "tableStyles.xml"},
	}
	for i := range pk.pres.slides {
		list = append(list, relationship{
			fmt.Sprintf("rId%d", firstSlideRel+i), relSlide, fmt.Sprintf("slides/slide%d.xml", i+1),
		})
	}
	return rels(list)
}

func rels(list []relationship) string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range list {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s"/>`, r.id, r.typ, r.target)
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

func layoutRels() string {
	return rels([]relationship{{"rId1", relSlideMaster, "../slideMasters/slideMaster1.xml"}})
}

const groupHeader = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
	`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`

func xfrm(b Box) string {
	return fmt.Sprintf(`<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, b.X, b.Y, b.W, b.H)
}

func placeholder(id int, name, ph string, box Box, text string) string {
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>`, id, name) +
		`<p:nvPr><p:ph ` + ph + `/></p:nvPr></p:nvSpPr>` +
		`<p:spPr>` + xfrm(box) + `</p:spPr>` +
		`<p:txBody><a:bodyPr/><a:lstStyle/>` + paragraphs(text) + `</p:txBody></p:sp>`
}

func paragraphs(text string) string {
	if text == "" {
		return `<a:p><a:endParaRPr lang="en-US" dirty="0"/></a:p>`
	}
	var sb strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line == "" {
			sb.WriteString(`<a:p><a:endParaRPr lang="en-US" dirty="0"/></a:p>`)
			continue
		}
		sb.WriteString(`<a:p><a:r><a:rPr lang="en-US" dirty="0"/><a:t>` + escape(line) + `</a:t></a:r></a:p>`)
	}
	return sb.String()
}

func audioPic(id int, m media, audioID, mediaID, imageID string) string {
	return fmt.Sprintf(`<p:pic><p:nvPicPr><p:cNvPr id="%d" name="%s">`, id, escape(m.name)) +
		`<a:hlinkClick r:id="" action="ppaction://media"/></p:cNvPr>` +
		`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr>` +
		`<p:nvPr><a:audioFile r:link="` + audioID + `"/>` +
		`<p:extLst><p:ext uri="{DAA4B4D4-6D71-4841-9C94-3DE7FCFB9230}">` +
		`<p14:media xmlns:p14="` + nsP14 + `" r:embed="` + mediaID + `"/></p:ext></p:extLst></p:nvPr></p:nvPicPr>` +
		`<p:blipFill><a:blip r:embed="` + imageID + `"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>` +
		`<p:spPr>` + xfrm(m.box) + `<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`
}

func slideMasterXML() string {
	return xmlHeader + `<p:sldMaster xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `">` +
		`<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg><p:spTree>` + groupHeader +
		placeholder(2, "Title Placeholder 1", `type="title"`, boxTitle, "") +
		placeholder(3, "Text Placeholder 2", `type="body" idx="1"`, boxBody, "") +
		`</p:spTree></p:cSld>` +
		`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" ` +
		`accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
		`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/><p:sldLayoutId id="2147483650" r:id="rId2"/></p:sldLayoutIdLst>` +
		`<p:txStyles>` +
		`<p:titleStyle><a:lvl1pPr algn="l"><a:defRPr sz="4000" b="1"><a:solidFill><a:schemeClr val="tx2"/></a:solidFill>` +
		`<a:latin typeface="+mj-lt"/></a:defRPr></a:lvl1pPr></p:titleStyle>` +
		`<p:bodyStyle><a:lvl1pPr marL="342900" indent="-342900"><a:spcBef><a:spcPts val="600"/></a:spcBef>` +
		`<a:buFont typeface="Arial"/><a:buChar char="&#8226;"/><a:defRPr sz="2200"><a:solidFill><a:schemeClr val="tx1"/></a:solidFill>` +
		`<a:latin typeface="+mn-lt"/></a:defRPr></a:lvl1pPr></p:bodyStyle>` +
		`<p:otherStyle><a:lvl1pPr><a:defRPr sz="1800"/></a:lvl1pPr></p:otherStyle>` +
		`</p:txStyles></p:sldMaster>`
}

func slideLayoutXML(layout Layout) string {
	var attrs, name, shapes string
	switch layout {
	case LayoutTitle:
		attrs, name = `type="title" preserve="1"`, "Title Slide"
		shapes = placeholder(2, "Title 1", `type="ctrTitle"`, boxCenterTitle, "") +
			placeholder(3, "Subtitle 2", `type="subTitle" idx="1"`, boxSubtitle, "")
	default:
		attrs, name = `type="obj" preserve="1"`, "Title and Content"
		shapes = placeholder(2, "Title 1", `type="title"`, boxTitle, "") +
			placeholder(3, "Content Placeholder 2", `idx="1"`, boxBody, "")
	}
	return xmlHeader + `<p:sldLayout xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `" ` + attrs + `>` +
		`<p:cSld name="` + name + `"><p:spTree>` + groupHeader + shapes + `</p:spTree></p:cSld>` +
		`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`
}

const themeXML = xmlHeader + `<a:theme xmlns:a="` + nsA + `" name="Deckcast"><a:themeElements>` +
	`<a:clrScheme name="Deckcast">` +
	`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1>` +
	`<a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>` +
	`<a:dk2><a:srgbClr val="1F2A44"/></a:dk2>` +
	`<a:lt2><a:srgbClr val="EEF1F6"/></a:lt2>` +
	`<a:accent1><a:srgbClr val="2E6BE6"/></a:accent1>` +
	`<a:accent2><a:srgbClr val="E67E22"/></a:accent2>` +
	`<a:accent3><a:srgbClr val="27AE60"/></a:accent3>` +
	`<a:accent4><a:srgbClr val="8E44AD"/></a:accent4>` +
	`<a:accent5><a:srgbClr val="C0392B"/></a:accent5>` +
	`<a:accent6><a:srgbClr val="16A085"/></a:accent6>` +
	`<a:hlink><a:srgbClr val="0563C1"/></a:hlink>` +
	`<a:folHlink><a:srgbClr val="954F72"/></a:folHlink>` +
	`</a:clrScheme>` +
	`<a:fontScheme name="Deckcast">` +
	`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
	`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>` +
	`</a:fontScheme>` +
	`<a:fmtScheme name="Deckcast">` +
	`<a:fillStyleLst>` + solidPh + solidPh + solidPh + `</a:fillStyleLst>` +
	`<a:lnStyleLst>` + linePh + linePh + linePh + `</a:lnStyleLst>` +
	`<a:effectStyleLst>` + noEffect + noEffect + noEffect + `</a:effectStyleLst>` +
	`<a:bgFillStyleLst>` + solidPh + solidPh + solidPh + `</a:bgFillStyleLst>` +
	`</a:fmtScheme></a:themeElements><a:objectDefaults/><a:extraClrSchemeLst/></a:theme>`

const (
	solidPh  = `<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`
	linePh   = `<a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>`
	noEffect = `<a:effectStyle><a:effectLst/></a:effectStyle>`
)

func writePart(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create part %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write part %s: %w", name, err)
	}
	return nil
}

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
