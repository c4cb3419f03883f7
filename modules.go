// This file is part of Interject project, available at https://github.com/qrdl/interject
// Copyright (c) 2025-2026 Ilya Caramishev. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at https://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux && (amd64 || arm64)

package interject

/*
#cgo CFLAGS: -D_GNU_SOURCE
#cgo LDFLAGS: -ldl

#include <dlfcn.h>
#include <limits.h>
#include <link.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

typedef struct loaded_object {
	char path[PATH_MAX];
	uintptr_t base;
} loaded_object;

typedef struct object_list {
	loaded_object *objects;
	size_t count;
	size_t cap;
	int oom;
} object_list;

static int collect_object(struct dl_phdr_info *info, size_t size, void *ctx) {
	object_list *list = (object_list *)ctx;

	if (info->dlpi_phnum == 0 || info->dlpi_phdr == NULL) {
		// entry carries no ELF program headers
		return 0;
	}

	if (list->count == list->cap) {
		size_t cap = list->cap ? list->cap * 2 : 16;
		loaded_object *objects = realloc(list->objects, cap * sizeof(loaded_object));
		if (objects == NULL) {
			list->oom = 1;
			return 1;
		}
		list->objects = objects;
		list->cap = cap;
	}

	loaded_object *obj = &list->objects[list->count++];
	obj->path[0] = '\0';
	if (info->dlpi_name != NULL) {
		strncpy(obj->path, info->dlpi_name, PATH_MAX - 1);
		obj->path[PATH_MAX - 1] = '\0';
	}
	obj->base = (uintptr_t)info->dlpi_addr;
	return 0;
}

static loaded_object *enumerate_objects(size_t *count, int *oom) {
	object_list list = {0};
	dl_iterate_phdr(collect_object, &list);
	*count = list.count;
	*oom = list.oom;
	return list.objects;
}
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
)

// Module is a reference to a loaded object. While the reference is held the
// dynamic loader cannot unload the object, so code resolved inside it stays
// mapped. Release with Close.
type Module struct {
	path   string
	handle unsafe.Pointer
}

// openModule acquires a reference to the loaded object backing path.
func openModule(path string) (*Module, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW)
	if handle == nil {
		return nil, errors.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}
	return &Module{path: path, handle: handle}, nil
}

// Path returns the file backing the loaded object.
func (m *Module) Path() string {
	return m.path
}

// Close drops the module reference. Safe to call more than once.
func (m *Module) Close() {
	if m.handle != nil {
		C.dlclose(m.handle)
		m.handle = nil
	}
}

// forEachModule invokes visit with (object path, load base) for every loaded
// object that carries ELF program headers, in dynamic-loader iteration order.
// The main executable reports an empty name on the loader side and is
// substituted with the resolved path of the current executable.
func forEachModule(visit func(path string, base uintptr)) error {
	var (
		count C.size_t
		oom   C.int
	)
	objects := C.enumerate_objects(&count, &oom)
	defer C.free(unsafe.Pointer(objects))
	if oom != 0 {
		return errors.New("out of memory enumerating loaded objects")
	}
	if count == 0 {
		return nil
	}

	for _, obj := range unsafe.Slice(objects, int(count)) {
		path := C.GoString(&obj.path[0])
		if path == "" {
			exe, err := os.Executable()
			if err != nil {
				return errors.Wrap(err, "resolving executable path")
			}
			path = exe
		}
		visit(path, uintptr(obj.base))
	}

	return nil
}
