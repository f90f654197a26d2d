package pptx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// SlideInfo summarizes one slide read back from a package.
type SlideInfo struct {
	Title string
	Body  string
	Media []string
}

type inspectRels struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type inspectPresentation struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type inspectSlide struct {
	Shapes []struct {
		Ph struct {
			Type string `xml:"type,attr"`
		} `xml:"nvSpPr>nvPr>ph"`
		Paras []struct {
			Runs []string `xml:"r>t"`
		} `xml:"txBody>p"`
	} `xml:"cSld>spTree>sp"`
	Pics []struct {
		Audio struct {
			Link string `xml:"link,attr"`
		} `xml:"nvPicPr>nvPr>audioFile"`
	} `xml:"cSld>spTree>pic"`
}

// Inspect reads the slides of the package at path in presentation order.
func Inspect(filePath string) ([]SlideInfo, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	defer func() { _ = zr.Close() }()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var pres inspectPresentation
	if err := decodePart(files, "ppt/presentation.xml", &pres); err != nil {
		return nil, err
	}
	presRels, err := readRels(files, "ppt/_rels/presentation.xml.rels")
	if err != nil {
		return nil, err
	}

	slides := make([]SlideInfo, 0, len(pres.SlideIDs))
	for _, id := range pres.SlideIDs {
		target, ok := presRels[id.RID]
		if !ok {
			return nil, fmt.Errorf("slide relationship %s not found", id.RID)
		}
		info, err := inspectSlidePart(files, path.Join("ppt", target))
		if err != nil {
			return nil, err
		}
		slides = append(slides, info)
	}
	return slides, nil
}

func inspectSlidePart(files map[string]*zip.File, name string) (SlideInfo, error) {
	var s inspectSlide
	if err := decodePart(files, name, &s); err != nil {
		return SlideInfo{}, err
	}

	relsName := path.Join(path.Dir(name), "_rels", path.Base(name)+".rels")
	slideRels, err := readRels(files, relsName)
	if err != nil {
		return SlideInfo{}, err
	}

	var info SlideInfo
	for _, sp := range s.Shapes {
		var lines []string
		for _, p := range sp.Paras {
			lines = append(lines, strings.Join(p.Runs, ""))
		}
		text := strings.Join(lines, "\n")

		switch sp.Ph.Type {
		case "title", "ctrTitle":
			info.Title = text
		default:
			info.Body = text
		}
	}
	for _, pic := range s.Pics {
		if target, ok := slideRels[pic.Audio.Link]; ok {
			info.Media = append(info.Media, path.Join(path.Dir(name), target))
		}
	}
	return info, nil
}

func readRels(files map[string]*zip.File, name string) (map[string]string, error) {
	var r inspectRels
	if err := decodePart(files, name, &r); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(r.Items))
	for _, item := range r.Items {
		targets[item.ID] = item.Target
	}
	return targets, nil
}

func decodePart(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("part %s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open part %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read part %s: %w", name, err)
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse part %s: %w", name, err)
	}
	return nil
}
