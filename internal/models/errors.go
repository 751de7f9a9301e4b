package models

import "errors"

var (
	// ErrProjectNotFound 项目不存在
	ErrProjectNotFound = errors.New("project not found")

	// ErrJobNotFound 转换任务不存在
	ErrJobNotFound = errors.New("transformation job not found")

	// ErrChapterNotFound 章节不存在
	ErrChapterNotFound = errors.New("chapter not found")

	// ErrInvalidStatusTransition 非法的状态转换
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrJobAlreadyRunning 项目已有运行中的转换任务
	ErrJobAlreadyRunning = errors.New("transformation already in progress")
)
