package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/internal/document"
	"github.com/zzappa/gradient-reading/internal/languages"
	"github.com/zzappa/gradient-reading/internal/models"
)

// Options 一次运行的参数
type Options struct {
	TargetLanguage string    // 目标语言代码
	SourceLanguage string    // 源语言代码
	ChunkWords     int       // 调用块目标词数
	CallWords      int       // 单次调用词数上限
	TailWords      int       // 连续性窗口词数
	Weights        []float64 // 级别权重
}

// ChapterOutput 一个级别的转换结果
type ChapterOutput struct {
	Level      int
	Paragraphs []string
	Footnotes  []models.Footnote
	Calls      int // 实际发出的生成调用次数
}

// Content 以空行拼接段落
func (o *ChapterOutput) Content() string {
	return strings.Join(o.Paragraphs, "\n\n")
}

// Pipeline 单次运行的级别处理流程
// 词汇表和连续性窗口在整个运行中共享，必须按级别和块的顺序串行调用
type Pipeline struct {
	gen        Generator
	splitter   document.UnitSplitter
	planner    *Planner
	batcher    *Batcher
	gate       *QualityGate
	tracker    *Tracker
	continuity *Continuity
	target     string
	source     string
	logger     *logrus.Logger
}

// NewPipeline 创建一次运行的处理流程
func NewPipeline(gen Generator, opts Options, logger *logrus.Logger) (*Pipeline, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if _, err := languages.Get(opts.TargetLanguage); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	splitter := document.SplitterFor(opts.SourceLanguage)
	planner, err := NewPlanner(splitter, opts.Weights)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		gen:        gen,
		splitter:   splitter,
		planner:    planner,
		batcher:    NewBatcher(splitter, opts.ChunkWords, opts.CallWords),
		gate:       NewQualityGate(opts.TargetLanguage, opts.SourceLanguage),
		tracker:    NewTracker(),
		continuity: NewContinuity(splitter, opts.TailWords),
		target:     opts.TargetLanguage,
		source:     opts.SourceLanguage,
		logger:     logger,
	}, nil
}

// Plan 将源文本切分为7个级别段
func (p *Pipeline) Plan(sourceText string) []Segment {
	return p.planner.Plan(p.splitter.Paragraphs(sourceText))
}

// Tracker 本次运行的词汇表
func (p *Pipeline) Tracker() *Tracker {
	return p.tracker
}

// ProcessSegment 转换一个级别段
// 任何一次调用耗尽重试都会返回错误，调用方应当终止整个运行
func (p *Pipeline) ProcessSegment(ctx context.Context, seg Segment) (*ChapterOutput, error) {
	out := &ChapterOutput{Level: seg.Level, Paragraphs: []string{}, Footnotes: []models.Footnote{}}
	if len(seg.Paragraphs) == 0 {
		return out, nil
	}

	for _, chunk := range p.batcher.Chunk(seg.Paragraphs) {
		chunkText := strings.TrimSpace(strings.Join(chunk, "\n\n"))
		if chunkText == "" {
			continue
		}

		var err error
		if p.batcher.FitsSingleCall(chunk) {
			err = p.processChunk(ctx, seg.Level, chunk, chunkText, out)
		} else {
			for _, para := range chunk {
				if err = p.processParagraph(ctx, seg.Level, para, out); err != nil {
					break
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}

	out.Footnotes = p.tracker.Enrich(out.Footnotes)
	return out, nil
}

// processChunk 整块一次调用，接受与输入不同的段落数
func (p *Pipeline) processChunk(ctx context.Context, level int, chunk []string, text string, out *ChapterOutput) error {
	result, err := p.call(ctx, level, text, out)
	if err != nil {
		return err
	}

	paras := p.collect(result, level, len(out.Paragraphs), out)
	if len(paras) != len(chunk) {
		p.logger.WithFields(logrus.Fields{
			"level":    level,
			"expected": len(chunk),
			"got":      len(paras),
		}).Warn("Paragraph count mismatch in chunk output")
	}
	out.Paragraphs = append(out.Paragraphs, paras...)

	if len(paras) > 0 {
		tail := paras
		if len(tail) > 2 {
			tail = tail[len(tail)-2:]
		}
		p.continuity.Update(strings.Join(tail, " "))
	}
	return nil
}

// processParagraph 单段调用，超长段落按句子分批后拼回同一个段落位置
func (p *Pipeline) processParagraph(ctx context.Context, level int, para string, out *ChapterOutput) error {
	para = strings.TrimSpace(para)
	index := len(out.Paragraphs)
	out.Paragraphs = append(out.Paragraphs, "")
	if para == "" {
		return nil
	}

	if p.batcher.FitsCall(para) {
		result, err := p.call(ctx, level, para, out)
		if err != nil {
			return err
		}
		paras := p.collect(result, level, index, out)
		out.Paragraphs[index] = joinNonEmpty(paras)
		if out.Paragraphs[index] != "" {
			p.continuity.Update(out.Paragraphs[index])
		}
		return nil
	}

	batches := p.batcher.SplitLongParagraph(para)
	p.logger.WithFields(logrus.Fields{
		"level":   level,
		"words":   p.batcher.WordCount(para),
		"batches": len(batches),
	}).Debug("Splitting oversized paragraph into sentence batches")

	parts := make([]string, 0, len(batches))
	for _, batch := range batches {
		result, err := p.call(ctx, level, batch, out)
		if err != nil {
			return err
		}
		text := joinNonEmpty(p.collect(result, level, index, out))
		if text == "" {
			continue
		}
		parts = append(parts, text)
		p.continuity.Update(text)
	}
	out.Paragraphs[index] = joinNonEmpty(parts)
	return nil
}

// call 发出一次生成调用，质量检查不通过时带纠正指令重试一次
// 重试的结果无论是否通过都会被接受
func (p *Pipeline) call(ctx context.Context, level int, text string, out *ChapterOutput) (*GenerationResult, error) {
	prompt, err := p.prompt(level, "")
	if err != nil {
		return nil, err
	}

	out.Calls++
	result, err := p.gen.Transform(ctx, TransformRequest{SystemPrompt: prompt, Text: text, Level: level})
	if err != nil {
		return nil, err
	}

	issues := p.gate.Check(result)
	if len(issues) == 0 {
		return result, nil
	}

	p.logger.WithFields(logrus.Fields{
		"level":  level,
		"target": p.target,
		"issues": strings.Join(issues, "; "),
	}).Warn("Quality check failed, retrying with correction")

	retryPrompt, err := p.prompt(level, p.gate.RetryHint(issues))
	if err != nil {
		return nil, err
	}
	out.Calls++
	retried, err := p.gen.Transform(ctx, TransformRequest{SystemPrompt: retryPrompt, Text: text, Level: level})
	if err != nil {
		p.logger.WithError(err).WithField("level", level).Warn("Quality retry failed, keeping first result")
		return result, nil
	}
	return retried, nil
}

func (p *Pipeline) prompt(level int, hint string) (string, error) {
	return BuildPrompt(PromptInput{
		Level:          level,
		TargetLanguage: p.target,
		SourceLanguage: p.source,
		KnownTerms:     p.tracker.KnownTermsListing(),
		ContinuityTail: p.continuity.Tail(),
		QualityHint:    hint,
	})
}

// collect 规整段落文本、记录脚注并登记新词条
// offset为第一个输出段落在章节中的位置
func (p *Pipeline) collect(result *GenerationResult, level, offset int, out *ChapterOutput) []string {
	// 单段和分批路径中所有输出都归入同一个段落位置
	sameSlot := offset < len(out.Paragraphs)
	slot := func(i int) int {
		if sameSlot {
			return offset
		}
		return offset + i
	}

	paras := make([]string, 0, len(result.Paragraphs))
	firstRef := make(map[string]int)
	for i, para := range result.Paragraphs {
		paras = append(paras, NormalizeAnnotations(para.Text))
		for _, ref := range para.FootnoteRefs {
			if key := TermKey(ref); key != "" {
				if _, seen := firstRef[key]; !seen {
					firstRef[key] = slot(i)
				}
			}
			out.Footnotes = append(out.Footnotes, models.Footnote{
				Term:           ref,
				ParagraphIndex: slot(i),
			})
		}
	}

	// 词条的位置取第一个引用它的段落，没有引用时取块的第一个段落
	for _, term := range Reconcile(result) {
		index, ok := firstRef[TermKey(term.Term)]
		if !ok {
			index = offset
		}
		p.tracker.AddTerms([]TermCandidate{term}, level, index)
	}
	return paras
}

func joinNonEmpty(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
