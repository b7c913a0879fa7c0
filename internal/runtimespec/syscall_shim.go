package runtimespec

// SyscallShimSource renders rv_syscall_shim.c: concrete definitions for
// every rv_sys_* function the "linux" preset's DispatchSource declares
// extern. Each shim translates a guest pointer (an offset
// into state->mem) to a host pointer before handing off to the matching
// POSIX call, the same "thin passthrough, no reinterpretation" idiom
// arithHelpers and memoryAccessors already use for arithmetic and memory.
// The "baremetal" preset's table is Exit-only and needs none of this.
func SyscallShimSource() string {
	return `/* Generated by rvtx. Do not edit by hand. */
#include "rv_state.h"

#include <errno.h>
#include <fcntl.h>
#include <stdint.h>
#include <sys/time.h>
#include <sys/stat.h>
#include <sys/mman.h>
#include <unistd.h>

static inline void *rv_ptr(rv_state_t *state, rv_word_t guest_addr) {
    return state->mem + (guest_addr & state->mem_mask);
}

rv_word_t rv_sys_getcwd(rv_state_t *state, rv_word_t buf, rv_word_t size) {
    if (getcwd((char *)rv_ptr(state, buf), (size_t)size) == NULL) return (rv_word_t)(int64_t)-errno;
    return buf;
}

rv_word_t rv_sys_close(rv_state_t *state, rv_word_t fd) {
    (void)state;
    return close((int)fd) < 0 ? (rv_word_t)(int64_t)-errno : 0;
}

rv_word_t rv_sys_openat(rv_state_t *state, rv_word_t dirfd, rv_word_t path, rv_word_t flags, rv_word_t mode) {
    int fd = openat((int)(int32_t)dirfd, (const char *)rv_ptr(state, path), (int)flags, (mode_t)mode);
    return fd < 0 ? (rv_word_t)(int64_t)-errno : (rv_word_t)fd;
}

rv_word_t rv_sys_read(rv_state_t *state, rv_word_t fd, rv_word_t buf, rv_word_t count) {
    ssize_t n = read((int)fd, rv_ptr(state, buf), (size_t)count);
    return n < 0 ? (rv_word_t)(int64_t)-errno : (rv_word_t)n;
}

rv_word_t rv_sys_write(rv_state_t *state, rv_word_t fd, rv_word_t buf, rv_word_t count) {
    ssize_t n = write((int)fd, rv_ptr(state, buf), (size_t)count);
    return n < 0 ? (rv_word_t)(int64_t)-errno : (rv_word_t)n;
}

rv_word_t rv_sys_lseek(rv_state_t *state, rv_word_t fd, rv_word_t offset, rv_word_t whence) {
    (void)state;
    off_t n = lseek((int)fd, (off_t)(int64_t)offset, (int)whence);
    return n < 0 ? (rv_word_t)(int64_t)-errno : (rv_word_t)n;
}

rv_word_t rv_sys_fstat(rv_state_t *state, rv_word_t fd, rv_word_t statbuf) {
    struct stat st;
    if (fstat((int)fd, &st) < 0) return (rv_word_t)(int64_t)-errno;
    /* Guest stat layout is the caller's runtime's problem; this shim copies
       only the fields riscv-tests-style probes actually read. */
    uint8_t *dst = (uint8_t *)rv_ptr(state, statbuf);
    uint64_t size = (uint64_t)st.st_size;
    uint64_t mode = (uint64_t)st.st_mode;
    for (int i = 0; i < 8; i++) dst[48 + i] = (uint8_t)(size >> (i * 8));
    for (int i = 0; i < 8; i++) dst[24 + i] = (uint8_t)(mode >> (i * 8));
    return 0;
}

rv_word_t rv_sys_yield(rv_state_t *state) {
    (void)state;
    return 0;
}

rv_word_t rv_sys_gettimeofday(rv_state_t *state, rv_word_t tv, rv_word_t tz) {
    struct timeval host_tv;
    if (gettimeofday(&host_tv, NULL) < 0) return (rv_word_t)(int64_t)-errno;
    if (tv != 0) {
        uint8_t *dst = (uint8_t *)rv_ptr(state, tv);
        uint64_t sec = (uint64_t)host_tv.tv_sec;
        uint64_t usec = (uint64_t)host_tv.tv_usec;
        for (int i = 0; i < 8; i++) dst[i] = (uint8_t)(sec >> (i * 8));
        for (int i = 0; i < 8; i++) dst[8 + i] = (uint8_t)(usec >> (i * 8));
    }
    (void)tz;
    return 0;
}

/* brk/mmap/munmap serve guest heap growth inside the single fixed memory
   window guestmem already allocated: they never call
   the host's own brk/mmap, they just report success against the window's
   existing bounds, since the window is not resizable once initialize runs. */
rv_word_t rv_sys_brk(rv_state_t *state, rv_word_t addr) {
    if (addr == 0) return state->mem_mask + 1;
    return addr;
}

rv_word_t rv_sys_munmap(rv_state_t *state, rv_word_t addr, rv_word_t len) {
    (void)state;
    (void)addr;
    (void)len;
    return 0;
}

rv_word_t rv_sys_mmap(rv_state_t *state, rv_word_t addr, rv_word_t len, rv_word_t prot, rv_word_t flags, rv_word_t fd, rv_word_t offset) {
    (void)prot;
    (void)flags;
    (void)fd;
    (void)offset;
    if (addr != 0) return addr;
    /* No real anonymous growth region tracked yet: park new mappings at a
       fixed offset from the window base so simple malloc-via-mmap guests
       get distinct, non-overlapping addresses for a bounded number of
       calls. */
    static rv_word_t next = 0;
    if (next == 0) next = (state->mem_mask + 1) / 2;
    rv_word_t got = next;
    next += (len + 4095) & ~(rv_word_t)4095;
    return got;
}
`
}
